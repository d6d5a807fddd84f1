// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moov-io/banklink"
	"github.com/moov-io/banklink/pkg/backend"
	"github.com/moov-io/banklink/pkg/config"
	cfgadmin "github.com/moov-io/banklink/pkg/config/admin"
	"github.com/moov-io/banklink/pkg/database"
	"github.com/moov-io/banklink/pkg/events"
	"github.com/moov-io/banklink/pkg/linking"
	"github.com/moov-io/banklink/pkg/notify"
	"github.com/moov-io/banklink/pkg/provider"
	"github.com/moov-io/banklink/pkg/secrets"
	"github.com/moov-io/banklink/pkg/util"
	"github.com/moov-io/banklink/x/route"
	"github.com/moov-io/banklink/x/trace"
	"github.com/moov-io/base/admin"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
)

var (
	flagConfigFile = flag.String("config", "", "Filepath for config file to load")
)

func main() {
	flag.Parse()

	cfg := readConfig(util.Or(os.Getenv("APP_CONFIG"), *flagConfigFile))
	cfg.Logger.Log("startup", fmt.Sprintf("Starting banklink server version %s", banklink.Version))

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	// Listen for application termination.
	errs := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errs <- fmt.Errorf("%s", <-c)
	}()

	// migrate database
	db, err := database.New(ctx, cfg.Logger, cfg.Database)
	if err != nil {
		panic(fmt.Sprintf("error creating database: %v", err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			cfg.Logger.Log("exit", err)
		}
	}()

	adminServer := setupAdminServer(cfg, errs)
	defer adminServer.Shutdown()

	keeper, err := secrets.Open(ctx, cfg.Secrets)
	if err != nil {
		panic(fmt.Sprintf("problem opening secrets keeper: %v", err))
	}
	defer keeper.Close()

	if closer := setupTracing(cfg); closer != nil {
		defer closer.Close()
	}

	providerClient := setupProviderClient(cfg, adminServer)
	backendClient := setupBackendClient(cfg, adminServer)

	publisher, err := events.NewPublisher(ctx, cfg.Logger, cfg.Events)
	if err != nil {
		panic(fmt.Sprintf("problem opening events publisher: %v", err))
	}
	defer publisher.Shutdown(context.Background())

	sender, err := notify.NewMultiSender(cfg.Logger, cfg.Notifications)
	if err != nil {
		panic(fmt.Sprintf("problem setting up notifications: %v", err))
	}

	clock := clockwork.NewRealClock()
	repo := linking.NewRepo(db, keeper)

	service := linking.NewService(cfg.Logger, cfg.Linking, clock, providerClient, backendClient, repo, publisher, sender)
	defer service.Shutdown()

	cleaner, err := linking.NewCleaner(cfg.Logger, cfg.Linking, clock, repo)
	if err != nil {
		panic(fmt.Sprintf("problem scheduling cleanup: %v", err))
	}
	// links left pending by a previous process are timed out before serving
	if _, err := cleaner.Expire(); err != nil {
		panic(fmt.Sprintf("problem expiring abandoned link requests: %v", err))
	}
	cleaner.Start()
	defer cleaner.Stop()

	linking.RegisterAdminRoutes(cfg.Logger, adminServer, service)

	// Create HTTP handler
	handler := mux.NewRouter()
	route.PingRoute(cfg.Logger, handler)

	linkingRouter := linking.NewRouter(cfg.Logger, service)
	linkingRouter.RegisterRoutes(handler)

	// Create main HTTP server
	serve := &http.Server{
		Addr:    cfg.Http.BindAddress,
		Handler: handler,
		TLSConfig: &tls.Config{
			InsecureSkipVerify:       false,
			PreferServerCipherSuites: true,
			MinVersion:               tls.VersionTLS12,
		},
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	shutdownServer := func() {
		if err := serve.Shutdown(context.TODO()); err != nil {
			cfg.Logger.Log("shutdown", err)
		}
	}
	defer shutdownServer()

	// Start main HTTP server
	go func() {
		if certFile, keyFile := os.Getenv("HTTPS_CERT_FILE"), os.Getenv("HTTPS_KEY_FILE"); certFile != "" && keyFile != "" {
			cfg.Logger.Log("startup", fmt.Sprintf("binding to %s for secure HTTP server", cfg.Http.BindAddress))
			if err := serve.ListenAndServeTLS(certFile, keyFile); err != nil {
				cfg.Logger.Log("exit", err)
			}
		} else {
			cfg.Logger.Log("startup", fmt.Sprintf("binding to %s for HTTP server", cfg.Http.BindAddress))
			if err := serve.ListenAndServe(); err != nil {
				cfg.Logger.Log("exit", err)
			}
		}
	}()

	if err := <-errs; err != nil {
		cfg.Logger.Log("exit", err)
	}
}

func readConfig(path string) *config.Config {
	cfg, err := config.FromFile(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

func setupAdminServer(cfg *config.Config, errs chan error) *admin.Server {
	svc := admin.NewServer(cfg.Admin.BindAddress)
	svc.AddVersionHandler(banklink.Version) // Setup 'GET /version'
	go func() {
		cfg.Logger.Log("admin", fmt.Sprintf("listening on %s", svc.BindAddr()))
		if err := svc.Listen(); err != nil {
			err = fmt.Errorf("problem starting admin http: %v", err)
			cfg.Logger.Log("admin", err)
			errs <- err
		}
	}()
	cfgadmin.RegisterRoutes(svc, cfg)
	return svc
}

func setupTracing(cfg *config.Config) io.Closer {
	if cfg.Tracing == nil {
		return nil
	}
	name := util.Or(cfg.Tracing.ServiceName, "banklink")
	_, closer, err := trace.New(cfg.Logger, trace.Options{
		ServiceName: name,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		panic(fmt.Sprintf("problem creating tracer: %v", err))
	}
	cfg.Logger.Log("tracing", fmt.Sprintf("sampling %v of %s spans", cfg.Tracing.SampleRate, name))
	return closer
}

func setupProviderClient(cfg *config.Config, svc *admin.Server) provider.Client {
	client, err := provider.NewClient(cfg.Logger, cfg.Provider)
	if err != nil {
		panic(fmt.Sprintf("problem creating provider client: %v", err))
	}
	svc.AddLivenessCheck("provider", client.Ping)
	return client
}

func setupBackendClient(cfg *config.Config, svc *admin.Server) backend.Client {
	client, err := backend.NewClient(cfg.Logger, cfg.Backend)
	if err != nil {
		panic(fmt.Sprintf("problem creating backend client: %v", err))
	}
	svc.AddLivenessCheck("backend", client.Ping)
	return client
}
