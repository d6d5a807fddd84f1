// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/moov-io/base/admin"
	moovhttp "github.com/moov-io/base/http"

	"github.com/go-kit/kit/log"
)

// RegisterAdminRoutes adds the operator endpoints for in-flight bank links.
func RegisterAdminRoutes(logger log.Logger, svc *admin.Server, service *Service) {
	svc.AddHandler("/bank-links", listActiveLinks(logger, service))
	svc.AddHandler("/bank-links/{requestID}", cancelLink(logger, service))
}

type activeLinks struct {
	RequestIDs []string `json:"requestIDs"`
}

func listActiveLinks(logger log.Logger, service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			http.Error(w, fmt.Sprintf("unsupported method %s", r.Method), http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(activeLinks{RequestIDs: service.Active()})
	}
}

// cancelLink stops a link for any merchant
func cancelLink(logger log.Logger, service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" {
			http.Error(w, fmt.Sprintf("unsupported method %s", r.Method), http.StatusMethodNotAllowed)
			return
		}

		requestID := getRequestID(r)
		status, err := service.Cancel(r.Context(), requestID, "")
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			moovhttp.Problem(w, err)
			return
		}

		logger.Log("linking", "admin cancelled bank link", "linkRequestID", requestID, "state", status.State,
			"requestID", moovhttp.GetRequestID(r))

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}
