// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package route

import (
	"net/http"

	"github.com/moov-io/banklink/x/trace"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// Span returns the server span started for this request.
func (r *Responder) Span() opentracing.Span {
	if r == nil {
		return nil
	}
	return r.span
}

func (r *Responder) setSpan() {
	r.span = trace.ServerSpan(r.name, r.request)
	if r.XRequestID != "" {
		r.span.SetTag("requestID", r.XRequestID)
	}
	if r.MerchantID != "" {
		r.span.SetTag("merchantID", r.MerchantID)
	}
}

func (r *Responder) finishSpan() {
	if r.span == nil {
		return
	}
	ext.HTTPStatusCode.Set(r.span, uint16(r.status))
	if r.status >= http.StatusInternalServerError {
		ext.Error.Set(r.span, true)
	}
	r.span.Finish()
	r.span = nil
}
