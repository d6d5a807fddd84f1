// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package admin exposes the running config on the admin HTTP server.
package admin

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/moov-io/banklink/pkg/config"
	"github.com/moov-io/base/admin"
	moovhttp "github.com/moov-io/base/http"
)

// RegisterRoutes adds GET /config unless it's been disabled.
func RegisterRoutes(svc *admin.Server, cfg *config.Config) {
	if cfg.Admin.DisableConfigEndpoint {
		return
	}
	svc.AddHandler("/config", getConfig(cfg))
}

// getConfig writes the running config as JSON. Credentials are tagged json:"-"
// and never leave the process. ?section=Linking narrows the output to one
// top-level section.
func getConfig(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			http.Error(w, fmt.Sprintf("unsupported method %s", r.Method), http.StatusMethodNotAllowed)
			return
		}

		var body interface{} = cfg
		if name := r.URL.Query().Get("section"); name != "" {
			sections, err := splitSections(cfg)
			if err != nil {
				moovhttp.Problem(w, err)
				return
			}
			section, ok := sections[name]
			if !ok {
				http.Error(w, fmt.Sprintf("unknown config section %q", name), http.StatusNotFound)
				return
			}
			body = section
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(body)
	}
}

func splitSections(cfg *config.Config) (map[string]json.RawMessage, error) {
	bs, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	return out, json.Unmarshal(bs, &out)
}
