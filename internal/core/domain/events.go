package domain

import "sync/atomic"

// CrossOriginMessage is the message hosts substitute for script errors whose
// details are hidden from the page.
const CrossOriginMessage = "Script error."

// ScriptError is a structured runtime error payload.
type ScriptError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// ResourceTarget describes the element whose load failed. Fields are empty
// when the host cannot provide them.
type ResourceTarget struct {
	Src       string `json:"src,omitempty"`
	TagName   string `json:"tagName,omitempty"`
	OuterHTML string `json:"outerHTML,omitempty"`
}

// defaultHandling tracks whether a handler suppressed the host's default
// reaction to a signal.
type defaultHandling struct {
	prevented atomic.Bool
}

// PreventDefault suppresses the host's default handling of the signal.
func (d *defaultHandling) PreventDefault() { d.prevented.Store(true) }

// DefaultPrevented reports whether PreventDefault was called.
func (d *defaultHandling) DefaultPrevented() bool { return d.prevented.Load() }

// ErrorEvent is a signal from the synchronous script-error channel. Script
// errors carry Error (and usually Message); resource failures carry Target only.
type ErrorEvent struct {
	defaultHandling

	Message  string
	Filename string
	Lineno   int
	Colno    int
	Error    *ScriptError
	Target   *ResourceTarget
}

// IsScriptError reports whether the event carries a structured script error
// rather than just a failing target.
func (e *ErrorEvent) IsScriptError() bool {
	return e.Error != nil || e.Message != ""
}

// ErrorMessage returns the event message, falling back to the error payload.
func (e *ErrorEvent) ErrorMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != nil {
		return e.Error.Message
	}
	return ""
}

// RejectionEvent is a signal from the asynchronous-rejection channel.
type RejectionEvent struct {
	defaultHandling

	Reason ScriptError
	// Value is the raw rejection value when it was not an error.
	Value any
}
