// Package vitals provides the public API for embedding the telemetry agent.
// This is the stable API for external consumers.
package vitals

import (
	"github.com/tjfontaine/errorvitals/internal/capture"
	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/host"
	"github.com/tjfontaine/errorvitals/internal/pipeline"
	"github.com/tjfontaine/errorvitals/internal/runtime"
)

// Agent observes the process for failures and reports them.
// See internal/runtime.Agent for full documentation.
type Agent = runtime.Agent

// Option is a functional option for configuring an Agent.
type Option = runtime.Option

// Middleware is a pipeline stage operating on one captured exception.
type Middleware = pipeline.Middleware[*domain.Context]

// Next continues a pipeline run.
type Next = pipeline.Next

// Context is the state one pipeline run operates on.
type Context = domain.Context

// FlushedData is the delivery-ready form of an exception.
type FlushedData = domain.FlushedData

// ReportConfig is handed to report callbacks.
type ReportConfig = domain.ReportConfig

// Process is the default host; its Recover, Go and NewRequest helpers feed
// the agent.
type Process = host.Process

// New creates a new Agent with the given options.
// Example:
//
//	agent, err := vitals.New(
//	    vitals.WithFileConfig("vitals.yaml"),
//	)
//	if err := agent.Start(ctx); err != nil { ... }
//	defer agent.Shutdown(ctx)
var New = runtime.New

// Deduplication policies
const (
	UIDTimestamped = capture.UIDTimestamped
	UIDStable      = capture.UIDStable
)

// Configuration options
var (
	// Config sources
	WithFileConfig = runtime.WithFileConfig
	WithConfig     = runtime.WithConfig

	// Capture
	WithHost      = runtime.WithHost
	WithUIDPolicy = runtime.WithUIDPolicy

	// Delivery
	WithHandleReport = runtime.WithHandleReport
	WithBeacon       = runtime.WithBeacon
	WithHTTPClient   = runtime.WithHTTPClient
	WithSQSClient    = runtime.WithSQSClient

	// Observability
	WithLogger     = runtime.WithLogger
	WithRecorder   = runtime.WithRecorder
	WithPrometheus = runtime.WithPrometheus
	WithTracing    = runtime.WithTracing

	// Performance metrics
	WithMetricsSource = runtime.WithMetricsSource

	// Advanced options
	WithMiddleware = runtime.WithMiddleware
)
