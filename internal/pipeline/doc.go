// Package pipeline provides the middleware execution engine every capture
// engine drives.
//
// A pipeline is an ordered chain of named stages. Stages run from the highest
// priority to the lowest; stages with equal priority keep registration order.
// Each stage receives the run's context value and a next continuation:
//
//	func(ctx context.Context, c *domain.Context, next pipeline.Next) error {
//		// work before the rest of the chain
//		next(ctx)
//		// work after the rest of the chain
//		return nil
//	}
//
// A stage that does not call next ends the run. A stage that returns an error
// or panics is logged and skipped; the chain resumes at the following stage
// and the caller of Execute never sees the failure.
package pipeline
