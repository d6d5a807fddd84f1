// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package route

import (
	"net/http"

	"github.com/moov-io/banklink"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

// PingRoute answers GET /ping with PONG so load balancers can check the public listener.
func PingRoute(logger log.Logger, r *mux.Router) {
	r.Methods("GET").Path("/ping").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
			logger.Log("route", "ping", "requestID", requestID)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("X-Banklink-Version", banklink.Version)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("PONG"))
	})
}
