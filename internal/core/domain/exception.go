// Package domain provides the core types shared by the capture, flush and
// report stages of the agent.
package domain

import "net/http"

// ExceptionType classifies a captured failure.
type ExceptionType string

const (
	// ExceptionJS is an uncaught script (runtime) error.
	ExceptionJS ExceptionType = "js"
	// ExceptionResource is a failed resource load.
	ExceptionResource ExceptionType = "resource"
	// ExceptionUnhandledRejection is an asynchronous failure nobody handled.
	ExceptionUnhandledRejection ExceptionType = "unhandledrejection"
	// ExceptionNetwork is a failing outgoing network request.
	ExceptionNetwork ExceptionType = "http"
	// ExceptionCrossOrigin is a script error masked by the host for origin reasons.
	ExceptionCrossOrigin ExceptionType = "cors"
)

// HTTPExceptionType narrows a network exception.
type HTTPExceptionType string

const (
	HTTPExceptionNetwork HTTPExceptionType = "network"
	HTTPExceptionTimeout HTTPExceptionType = "timeout"
	HTTPExceptionStatus  HTTPExceptionType = "status"
	HTTPExceptionUnknown HTTPExceptionType = "unknown"
)

// Metadata carries identifiers attached to an exception at creation.
type Metadata struct {
	// UID is the deduplication fingerprint.
	UID string `json:"uid"`
	// ID uniquely identifies this record.
	ID string `json:"id"`
}

// Exception is one captured failure.
type Exception struct {
	// Payload is the original signal: *ErrorEvent, *RejectionEvent or *RequestInfo.
	Payload   any           `json:"-"`
	Timestamp int64         `json:"timestamp"`
	Type      ExceptionType `json:"type"`
	Metadata  Metadata      `json:"metadata"`
	// Processed is reserved for stage coordination and is never mutated.
	Processed bool `json:"processed"`
	// ShouldReport lets a stage veto delivery.
	ShouldReport bool `json:"shouldReport"`
}

// NewException creates a record in its initial state.
func NewException(typ ExceptionType, payload any, timestamp int64, meta Metadata) *Exception {
	return &Exception{
		Payload:      payload,
		Timestamp:    timestamp,
		Type:         typ,
		Metadata:     meta,
		Processed:    false,
		ShouldReport: true,
	}
}

// RequestInfo traces one outstanding network call.
type RequestInfo struct {
	URL    string `json:"url"`
	Method string `json:"method"`
	// Headers is a map[string]string, a [][2]string list of pairs or an http.Header.
	Headers           any               `json:"headers"`
	StartTimestamp    int64             `json:"startTimestamp"`
	EndTimestamp      int64             `json:"endTimestamp"`
	Duration          int64             `json:"duration"`
	Status            int               `json:"status"`
	StatusText        string            `json:"statusText"`
	HTTPExceptionType HTTPExceptionType `json:"httpExceptionType"`
	Error             error             `json:"-"`
}

// SetHeader records a request header, creating the header map on first use.
func (r *RequestInfo) SetHeader(key, value string) {
	switch h := r.Headers.(type) {
	case map[string]string:
		h[key] = value
	case http.Header:
		h.Set(key, value)
	case [][2]string:
		r.Headers = append(h, [2]string{key, value})
	default:
		r.Headers = map[string]string{key: value}
	}
}

// Finish stamps the end of the call and computes its duration.
func (r *RequestInfo) Finish(end int64, kind HTTPExceptionType) {
	r.EndTimestamp = end
	r.Duration = end - r.StartTimestamp
	r.HTTPExceptionType = kind
}
