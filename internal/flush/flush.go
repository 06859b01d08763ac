// Package flush normalizes captured exceptions into their delivery shape.
package flush

import (
	"context"
	"fmt"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/pipeline"
)

const (
	// StageName names the normalization stage.
	StageName = "flushData"
	// StagePriority runs normalization before delivery.
	StagePriority = 20
)

// Stage returns the normalization stage. It reads the run's current
// exception, writes the run's flushed slot and appends to the shared history.
// Records that vetoed delivery are still normalized but marked Skip.
func Stage(page func() domain.PageInfo) *pipeline.Middleware[*domain.Context] {
	return &pipeline.Middleware[*domain.Context]{
		Name:     StageName,
		Priority: StagePriority,
		Process: func(ctx context.Context, c *domain.Context, next pipeline.Next) error {
			exc := c.CurrentException
			if exc == nil {
				next(ctx)
				return nil
			}

			flushed, err := Normalize(exc)
			if err != nil {
				return err
			}

			data := &domain.FlushedData{
				PageInfo: page(),
				Flushed:  flushed,
				Skip:     !exc.ShouldReport,
			}
			c.CurrentFlushed = data
			c.Shared.AppendFlushed(data)

			next(ctx)
			return nil
		},
	}
}

// Normalize converts one exception to its type-tagged flat form.
func Normalize(exc *domain.Exception) (domain.FlushedException, error) {
	switch exc.Type {
	case domain.ExceptionJS:
		ev, err := payload[*domain.ErrorEvent](exc)
		if err != nil {
			return nil, err
		}
		out := &domain.FlushedJSException{Type: exc.Type, Message: ev.ErrorMessage(), Stacks: []domain.StackFrame{}}
		if ev.Error != nil {
			out.Stacks = ParseStack(ev.Error.Stack)
		}
		return out, nil

	case domain.ExceptionCrossOrigin:
		ev, err := payload[*domain.ErrorEvent](exc)
		if err != nil {
			return nil, err
		}
		return &domain.FlushedCORSException{Type: exc.Type, Message: ev.ErrorMessage(), Filename: ev.Filename}, nil

	case domain.ExceptionResource:
		ev, err := payload[*domain.ErrorEvent](exc)
		if err != nil {
			return nil, err
		}
		out := &domain.FlushedResourceException{Type: exc.Type}
		if ev.Target != nil {
			out.Src = ev.Target.Src
			out.TagName = ev.Target.TagName
			out.OuterHTML = ev.Target.OuterHTML
		}
		return out, nil

	case domain.ExceptionUnhandledRejection:
		ev, err := payload[*domain.RejectionEvent](exc)
		if err != nil {
			return nil, err
		}
		return &domain.FlushedRejectionException{
			Type:   exc.Type,
			Reason: ev.Reason.Message,
			Stacks: ParseStack(ev.Reason.Stack),
		}, nil

	case domain.ExceptionNetwork:
		info, err := payload[*domain.RequestInfo](exc)
		if err != nil {
			return nil, err
		}
		out := &domain.FlushedHTTPException{
			Type:              exc.Type,
			URL:               info.URL,
			Method:            info.Method,
			Headers:           Redact(HeaderMap(info.Headers)),
			StartTimestamp:    info.StartTimestamp,
			EndTimestamp:      info.EndTimestamp,
			Duration:          info.Duration,
			Status:            info.Status,
			StatusText:        info.StatusText,
			HTTPExceptionType: info.HTTPExceptionType,
		}
		if info.Error != nil {
			out.Reason = info.Error.Error()
		}
		return out, nil
	}

	// Sibling engines may hand over an already-flat payload.
	if flat, ok := exc.Payload.(domain.FlushedException); ok {
		return flat, nil
	}
	return nil, fmt.Errorf("flush: unsupported exception type %q", exc.Type)
}

func payload[T any](exc *domain.Exception) (T, error) {
	v, ok := exc.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("flush: %s exception carries %T", exc.Type, exc.Payload)
	}
	return v, nil
}
