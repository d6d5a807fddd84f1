// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	linksInitiated = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "bank_links_initiated",
		Help: "Counter of bank links started, by result",
	}, []string{"result"})

	pollsCounter = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "bank_link_polls",
		Help: "Counter of provider status polls, by result",
	}, []string{"result"})

	outcomesCounter = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "bank_link_outcomes",
		Help: "Counter of reconciled bank links, by outcome",
	}, []string{"outcome"})

	linksCancelled = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "bank_links_cancelled",
		Help: "Counter of bank links cancelled before resolving",
	}, nil)

	persistenceFailures = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "bank_link_persistence_failures",
		Help: "Counter of verified accounts the backend failed to save",
	}, nil)

	cleanedUp = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "bank_link_requests_cleaned_up",
		Help: "Counter of reconciled link requests removed after the retention window",
	}, nil)

	expiredLinks = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "bank_link_requests_expired",
		Help: "Counter of pending link requests left behind by a previous process and timed out",
	}, nil)
)
