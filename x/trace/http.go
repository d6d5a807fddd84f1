// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package trace

import (
	"net/http"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// InjectRequest tags span as an outbound call and copies its context into the request headers.
func InjectRequest(req *http.Request, span opentracing.Span) *http.Request {
	ext.SpanKindRPCClient.Set(span)
	ext.HTTPUrl.Set(span, req.URL.String())
	ext.HTTPMethod.Set(span, req.Method)

	opentracing.GlobalTracer().Inject(span.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header))
	return req
}

// ServerSpan starts a span for an inbound request, continuing the caller's trace when
// its headers carry one.
func ServerSpan(name string, req *http.Request) opentracing.Span {
	tracer := opentracing.GlobalTracer()
	parent, _ := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header))

	span := tracer.StartSpan(name, ext.RPCServerOption(parent))
	ext.HTTPMethod.Set(span, req.Method)
	return span
}
