package domain

// PageInfo identifies where the failure happened.
type PageInfo struct {
	Href      string `json:"href"`
	UserAgent string `json:"userAgent"`
}

// FlushedData is the delivery-ready shape produced by the flush stage.
type FlushedData struct {
	PageInfo PageInfo         `json:"pageInfo"`
	Flushed  FlushedException `json:"flushed"`
	// Skip is set when the source record vetoed delivery.
	Skip bool `json:"-"`
}

// FlushedException is a type-tagged normalized exception.
type FlushedException interface {
	ExceptionType() ExceptionType
}

// StackFrame is one parsed stack line.
type StackFrame struct {
	Filename     string `json:"filename"`
	FunctionName string `json:"functionName"`
	Lineno       int    `json:"lineno"`
	Colno        int    `json:"colno"`
}

type FlushedJSException struct {
	Type    ExceptionType `json:"type"`
	Message string        `json:"message"`
	Stacks  []StackFrame  `json:"stacks"`
}

func (e *FlushedJSException) ExceptionType() ExceptionType { return e.Type }

type FlushedCORSException struct {
	Type     ExceptionType `json:"type"`
	Message  string        `json:"message"`
	Filename string        `json:"filename"`
}

func (e *FlushedCORSException) ExceptionType() ExceptionType { return e.Type }

type FlushedResourceException struct {
	Type      ExceptionType `json:"type"`
	Src       string        `json:"src"`
	TagName   string        `json:"tagName"`
	OuterHTML string        `json:"outerHTML"`
}

func (e *FlushedResourceException) ExceptionType() ExceptionType { return e.Type }

type FlushedRejectionException struct {
	Type   ExceptionType `json:"type"`
	Reason string        `json:"reason"`
	Stacks []StackFrame  `json:"stacks"`
}

func (e *FlushedRejectionException) ExceptionType() ExceptionType { return e.Type }

// FlushedHTTPException is a flattened, redacted RequestInfo. The transport
// error is carried as Reason only.
type FlushedHTTPException struct {
	Type              ExceptionType     `json:"type"`
	URL               string            `json:"url"`
	Method            string            `json:"method"`
	Headers           map[string]string `json:"headers"`
	StartTimestamp    int64             `json:"startTimestamp"`
	EndTimestamp      int64             `json:"endTimestamp"`
	Duration          int64             `json:"duration"`
	Status            int               `json:"status"`
	StatusText        string            `json:"statusText"`
	HTTPExceptionType HTTPExceptionType `json:"httpExceptionType"`
	Reason            string            `json:"reason"`
}

func (e *FlushedHTTPException) ExceptionType() ExceptionType { return e.Type }
