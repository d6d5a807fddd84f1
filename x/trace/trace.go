// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package trace sets up Jaeger as the process-wide opentracing.Tracer.
package trace

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-kit/kit/log"
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	jaegermetrics "github.com/uber/jaeger-lib/metrics/prometheus"
)

type Options struct {
	ServiceName string

	// SampleRate is the share of traces recorded. 1.0 records every trace.
	SampleRate float64

	LogSpans bool
}

func (opts Options) sampler() *jaegercfg.SamplerConfig {
	if opts.SampleRate >= 1.0 {
		return &jaegercfg.SamplerConfig{Type: jaeger.SamplerTypeConst, Param: 1.0}
	}
	return &jaegercfg.SamplerConfig{Type: jaeger.SamplerTypeProbabilistic, Param: opts.SampleRate}
}

var (
	// jaeger metrics can only be registered with prometheus once
	metricsFactory = jaegermetrics.New(jaegermetrics.WithRegisterer(prometheus.DefaultRegisterer))
)

// New creates a Jaeger tracer and installs it as the opentracing global tracer.
// Callers should Close the returned io.Closer to flush buffered spans.
func New(logger log.Logger, opts Options) (opentracing.Tracer, io.Closer, error) {
	if opts.ServiceName == "" {
		return nil, nil, errors.New("trace: missing service name")
	}
	cfg := jaegercfg.Configuration{
		ServiceName: opts.ServiceName,
		Sampler:     opts.sampler(),
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans: opts.LogSpans,
		},
	}
	tracer, closer, err := cfg.NewTracer(
		jaegercfg.Logger(&jaegerLogger{inner: logger}),
		jaegercfg.Metrics(metricsFactory),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("trace: %v", err)
	}
	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}

var _ jaeger.Logger = (*jaegerLogger)(nil)

type jaegerLogger struct {
	inner log.Logger
}

func (l *jaegerLogger) Error(msg string) {
	l.inner.Log("tracing", msg, "level", "error")
}

func (l *jaegerLogger) Infof(msg string, args ...interface{}) {
	l.inner.Log("tracing", fmt.Sprintf(msg, args...))
}
