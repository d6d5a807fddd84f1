// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package route

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moov-io/banklink"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

func TestPingRoute(t *testing.T) {
	router := mux.NewRouter()
	PingRoute(log.NewNopLogger(), router)

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Request-ID", "ping-check")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "PONG" {
		t.Errorf("HTTP %d: %s", w.Code, w.Body.String())
	}
	if v := w.Header().Get("X-Banklink-Version"); v != banklink.Version {
		t.Errorf("X-Banklink-Version: %q", v)
	}

	// other methods aren't routed
	req = httptest.NewRequest("POST", "/ping", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusOK {
		t.Errorf("HTTP %d", w.Code)
	}
}
