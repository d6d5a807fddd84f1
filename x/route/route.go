// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package route

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	moovhttp "github.com/moov-io/base/http"
	opentracing "github.com/opentracing/opentracing-go"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/gorilla/mux"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	routeDurations = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Name: "http_response_duration_seconds",
		Help: "Histogram representing the http response durations",
	}, []string{"route", "status"})
)

// HeaderMerchantID returns the merchant from HTTP Headers
func HeaderMerchantID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Merchant-ID"))
}

// ReadPathID returns the named mux path variable, or an empty string when absent.
func ReadPathID(name string, r *http.Request) string {
	return strings.TrimSpace(mux.Vars(r)[name])
}

// Responder wraps a single HTTP exchange so each handler logs, traces and
// records its latency the same way.
type Responder struct {
	MerchantID string
	XRequestID string

	logger log.Logger

	request *http.Request
	span    opentracing.Span
	name    string
	start   time.Time
	status  int

	writer http.ResponseWriter
}

func NewResponder(logger log.Logger, w http.ResponseWriter, r *http.Request) *Responder {
	resp := &Responder{
		MerchantID: HeaderMerchantID(r),
		XRequestID: moovhttp.GetRequestID(r),
		logger:     logger,
		request:    r,
		name:       Name(r),
		start:      time.Now(),
		status:     http.StatusOK,
		writer:     w,
	}
	resp.setSpan()
	return resp
}

func (r *Responder) Log(kvpairs ...interface{}) {
	if r == nil || r.logger == nil {
		return
	}
	args := append([]interface{}{
		"requestID", r.XRequestID,
		"merchantID", r.MerchantID,
		"route", r.name,
	}, kvpairs...)
	r.logger.Log(args...)
}

// Respond sets a JSON content type and hands the writer to fn.
func (r *Responder) Respond(fn func(http.ResponseWriter)) {
	if r == nil {
		return
	}
	r.writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	fn(&statusWriter{ResponseWriter: r.writer, responder: r})
	r.finish()
}

// Problem writes err with moov-io/base's default status (400).
func (r *Responder) Problem(err error) {
	if r == nil {
		return
	}
	r.status = http.StatusBadRequest
	r.Log("error", err)
	r.writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	moovhttp.Problem(r.writer, err)
	r.finish()
}

// ProblemWithStatus writes err as a JSON problem with the given HTTP status code.
func (r *Responder) ProblemWithStatus(status int, err error) {
	if r == nil {
		return
	}
	r.status = status
	r.Log("error", err, "status", status)
	r.writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	r.writer.WriteHeader(status)
	json.NewEncoder(r.writer).Encode(map[string]string{
		"error": err.Error(),
	})
	r.finish()
}

func (r *Responder) finish() {
	r.finishSpan()
	routeDurations.With("route", r.name, "status", fmt.Sprintf("%d", r.status)).Observe(time.Since(r.start).Seconds())
}

type statusWriter struct {
	http.ResponseWriter
	responder *Responder
}

func (w *statusWriter) WriteHeader(code int) {
	w.responder.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Name builds a low-cardinality label for the request, such as "get-bank-links".
// Path variables are dropped so every link request shares one label.
func Name(r *http.Request) string {
	path := r.URL.Path
	if current := mux.CurrentRoute(r); current != nil {
		if tpl, err := current.GetPathTemplate(); err == nil {
			path = tpl
		}
	}
	parts := []string{strings.ToLower(r.Method)}
	for _, p := range strings.Split(path, "/") {
		if p == "" || strings.HasPrefix(p, "{") {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, "-")
}
