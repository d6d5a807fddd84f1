// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"net"
	"testing"
	"time"

	"github.com/moov-io/base/docker"

	"github.com/ory/dockertest/v3"
)

// startSMTPServer runs mailslurper in docker and returns the host port of its SMTPS listener.
// The container is removed when the test finishes.
func startSMTPServer(t *testing.T) string {
	t.Helper()
	if testing.Short() || !docker.Enabled() {
		t.Skip("skipping docker test")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatal(err)
	}
	pool.MaxWait = 30 * time.Second

	container, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository:   "oryd/mailslurper",
		Tag:          "latest-smtps",
		ExposedPorts: []string{"1025"},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { container.Close() })

	port := container.GetPort("1025/tcp")
	err = pool.Retry(func() error {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort("localhost", port), time.Second)
		if err != nil {
			return err
		}
		return conn.Close()
	})
	if err != nil {
		t.Fatal(err)
	}
	return port
}
