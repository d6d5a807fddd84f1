// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/pkg/session"
	"github.com/moov-io/banklink/x/route"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

var (
	errMerchantMismatch = errors.New("X-Merchant-ID does not match merchant")
	errMissingMerchant  = errors.New("missing X-Merchant-ID header")
)

type Router struct {
	Logger  log.Logger
	Service *Service

	CreateBankLink http.HandlerFunc
	GetBankLink    http.HandlerFunc
	DeleteBankLink http.HandlerFunc
}

func NewRouter(logger log.Logger, svc *Service) *Router {
	return &Router{
		Logger:         logger,
		Service:        svc,
		CreateBankLink: CreateBankLink(logger, svc),
		GetBankLink:    GetBankLink(logger, svc),
		DeleteBankLink: DeleteBankLink(logger, svc),
	}
}

func (c *Router) RegisterRoutes(r *mux.Router) {
	r.Methods("POST").Path("/merchants/{merchantID}/bank-links").HandlerFunc(c.CreateBankLink)
	r.Methods("GET").Path("/bank-links/{requestID}").HandlerFunc(c.GetBankLink)
	r.Methods("DELETE").Path("/bank-links/{requestID}").HandlerFunc(c.DeleteBankLink)
}

func getRequestID(r *http.Request) string {
	return route.ReadPathID("requestID", r)
}

func CreateBankLink(logger log.Logger, svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)

		merchantID := route.ReadPathID("merchantID", r)
		if responder.MerchantID == "" {
			responder.ProblemWithStatus(http.StatusForbidden, errMissingMerchant)
			return
		}
		if responder.MerchantID != merchantID {
			responder.ProblemWithStatus(http.StatusForbidden, errMerchantMismatch)
			return
		}

		status, err := svc.Start(r.Context(), session.FromRequest(r, merchantID))
		if err != nil {
			var ierr *InitiationError
			if errors.As(err, &ierr) && ierr.Rejected() {
				responder.Problem(err)
				return
			}
			responder.ProblemWithStatus(http.StatusBadGateway, err)
			return
		}
		responder.Log("linking", "created bank link", "linkRequestID", status.RequestID)

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(status)
		})
	}
}

func GetBankLink(logger log.Logger, svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)
		if responder.MerchantID == "" {
			responder.ProblemWithStatus(http.StatusForbidden, errMissingMerchant)
			return
		}

		status, err := svc.Status(r.Context(), getRequestID(r), responder.MerchantID)
		writeStatus(responder, status, err)
	}
}

func DeleteBankLink(logger log.Logger, svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(logger, w, r)
		if responder.MerchantID == "" {
			responder.ProblemWithStatus(http.StatusForbidden, errMissingMerchant)
			return
		}

		status, err := svc.Cancel(r.Context(), getRequestID(r), responder.MerchantID)
		writeStatus(responder, status, err)
	}
}

func writeStatus(responder *route.Responder, status *client.LinkStatus, err error) {
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			responder.ProblemWithStatus(http.StatusNotFound, err)
			return
		}
		responder.ProblemWithStatus(http.StatusInternalServerError, err)
		return
	}
	responder.Respond(func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	})
}
