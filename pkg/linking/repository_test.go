// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/pkg/database"
	"github.com/moov-io/banklink/pkg/secrets"

	"github.com/moov-io/base"
)

func setupSQLiteDB(t *testing.T) *sqlRepo {
	db := database.CreateTestSqliteDB(t)
	t.Cleanup(func() { db.Close() })

	return &sqlRepo{db: db.DB, keeper: secrets.TestAccountKeeper(t)}
}

func setupMySQLDB(t *testing.T) *sqlRepo {
	db := database.CreateTestMySQLDB(t)
	t.Cleanup(func() { db.Close() })

	return &sqlRepo{db: db.DB, keeper: secrets.TestAccountKeeper(t)}
}

// accountNumber decrypts the stored account number of a reconciled candidate.
func (r *sqlRepo) accountNumber(requestID string) (string, error) {
	query := `select encrypted_account_number from bank_link_candidates where request_id = ? limit 1;`
	var encrypted string
	if err := r.db.QueryRow(query, requestID).Scan(&encrypted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return r.keeper.Unseal(context.Background(), encrypted)
}

var testNow = time.Date(2020, time.October, 12, 15, 30, 0, 0, time.UTC)

func writeLinkRequest(t *testing.T, repo Repository, merchantID string) *client.LinkRequest {
	t.Helper()

	req := &client.LinkRequest{
		RequestID:  base.ID(),
		MerchantID: merchantID,
		State:      client.LinkPending,
		CreatedAt:  testNow,
	}
	if err := repo.CreateLinkRequest(req, "user"); err != nil {
		t.Fatal(err)
	}
	return req
}

func TestRepository(t *testing.T) {
	check := func(t *testing.T, repo *sqlRepo) {
		req := writeLinkRequest(t, repo, "merchant")

		status, err := repo.GetLinkRequest(req.RequestID, "merchant")
		if err != nil {
			t.Fatal(err)
		}
		if status.State != client.LinkPending || status.Signal != client.SignalConnecting {
			t.Errorf("unexpected status: %#v", status)
		}
		if !status.CreatedAt.Equal(testNow) {
			t.Errorf("createdAt=%v", status.CreatedAt)
		}
		if status.ResolvedAt != nil || status.BankAccount != nil {
			t.Errorf("unexpected status: %#v", status)
		}

		// empty merchant matches any
		if _, err := repo.GetLinkRequest(req.RequestID, ""); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.GetLinkRequest(req.RequestID, "other"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound: %v", err)
		}
		if _, err := repo.GetLinkRequest(base.ID(), ""); err != ErrNotFound {
			t.Errorf("expected ErrNotFound: %v", err)
		}
	}

	t.Run("SQLite", func(t *testing.T) {
		check(t, setupSQLiteDB(t))
	})
	t.Run("MySQL", func(t *testing.T) {
		check(t, setupMySQLDB(t))
	})
}

func TestRepository__resolveSuccess(t *testing.T) {
	check := func(t *testing.T, repo *sqlRepo) {
		req := writeLinkRequest(t, repo, "merchant")

		resolvedAt := testNow.Add(9 * time.Second)
		ok, err := repo.ResolveLinkRequest(req.RequestID, Resolved{
			State:     client.LinkSuccess,
			Outcome:   client.Success,
			Candidate: verifiedAccount(),
			BankAccount: &client.BankAccount{
				BankAccountID: "ba1",
			},
			ResolvedAt: resolvedAt,
		})
		if !ok || err != nil {
			t.Fatalf("ok=%v error=%v", ok, err)
		}

		status, err := repo.GetLinkRequest(req.RequestID, "merchant")
		if err != nil {
			t.Fatal(err)
		}
		if status.State != client.LinkSuccess || status.Signal != client.SignalConnected || status.Outcome != client.Success {
			t.Errorf("unexpected status: %#v", status)
		}
		if status.ResolvedAt == nil || !status.ResolvedAt.Equal(resolvedAt) {
			t.Errorf("resolvedAt=%v", status.ResolvedAt)
		}
		acct := status.BankAccount
		if acct == nil {
			t.Fatal("missing bank account")
		}
		if acct.BankAccountID != "ba1" || acct.MaskedAccountNumber != "***4567" || acct.HolderName != "Jane Doe" || !acct.Verified {
			t.Errorf("unexpected account: %#v", acct)
		}

		// account number is stored encrypted
		num, err := repo.accountNumber(req.RequestID)
		if err != nil {
			t.Fatal(err)
		}
		if num != "1234567" {
			t.Errorf("account number=%q", num)
		}

		// resolving twice is rejected
		ok, err = repo.ResolveLinkRequest(req.RequestID, Resolved{State: client.LinkFailed, ResolvedAt: resolvedAt})
		if ok || err != nil {
			t.Errorf("ok=%v error=%v", ok, err)
		}
	}

	t.Run("SQLite", func(t *testing.T) {
		check(t, setupSQLiteDB(t))
	})
	t.Run("MySQL", func(t *testing.T) {
		check(t, setupMySQLDB(t))
	})
}

func TestRepository__resolveFailure(t *testing.T) {
	repo := setupSQLiteDB(t)
	req := writeLinkRequest(t, repo, "merchant")

	ok, err := repo.ResolveLinkRequest(req.RequestID, Resolved{
		State:      client.LinkFailed,
		Outcome:    client.CommunicationError,
		ErrorKey:   ErrorKey(client.CommunicationError),
		ResolvedAt: testNow,
	})
	if !ok || err != nil {
		t.Fatalf("ok=%v error=%v", ok, err)
	}

	status, err := repo.GetLinkRequest(req.RequestID, "")
	if err != nil {
		t.Fatal(err)
	}
	if status.Signal != client.SignalError || status.ErrorKey != "bank_link.error.communication" {
		t.Errorf("unexpected status: %#v", status)
	}
	if status.BankAccount != nil {
		t.Errorf("unexpected account: %#v", status.BankAccount)
	}
	if _, err := repo.accountNumber(req.RequestID); err != ErrNotFound {
		t.Errorf("expected no candidate: %v", err)
	}
}

func TestRepository__persistenceFailure(t *testing.T) {
	repo := setupSQLiteDB(t)
	req := writeLinkRequest(t, repo, "merchant")

	ok, err := repo.ResolveLinkRequest(req.RequestID, Resolved{
		State:      client.LinkFailed,
		Outcome:    client.Success,
		ErrorKey:   PersistenceErrorKey,
		Candidate:  verifiedAccount(),
		ResolvedAt: testNow,
	})
	if !ok || err != nil {
		t.Fatalf("ok=%v error=%v", ok, err)
	}

	status, err := repo.GetLinkRequest(req.RequestID, "")
	if err != nil {
		t.Fatal(err)
	}
	if status.State != client.LinkFailed || status.ErrorKey != PersistenceErrorKey || status.BankAccount != nil {
		t.Errorf("unexpected status: %#v", status)
	}
	// the verified candidate is kept for support
	if num, err := repo.accountNumber(req.RequestID); err != nil || num != "1234567" {
		t.Errorf("num=%q error=%v", num, err)
	}
}

func TestRepository__cancel(t *testing.T) {
	check := func(t *testing.T, repo *sqlRepo) {
		req := writeLinkRequest(t, repo, "merchant")

		ok, err := repo.CancelLinkRequest(req.RequestID, testNow)
		if !ok || err != nil {
			t.Fatalf("ok=%v error=%v", ok, err)
		}
		ok, err = repo.CancelLinkRequest(req.RequestID, testNow)
		if ok || err != nil {
			t.Fatalf("second cancel: ok=%v error=%v", ok, err)
		}

		status, err := repo.GetLinkRequest(req.RequestID, "merchant")
		if err != nil {
			t.Fatal(err)
		}
		if status.State != client.LinkCancelled || status.Signal != client.SignalIdle {
			t.Errorf("unexpected status: %#v", status)
		}

		// cancelled links can't be resolved
		ok, err = repo.ResolveLinkRequest(req.RequestID, Resolved{State: client.LinkSuccess, ResolvedAt: testNow})
		if ok || err != nil {
			t.Errorf("ok=%v error=%v", ok, err)
		}
	}

	t.Run("SQLite", func(t *testing.T) {
		check(t, setupSQLiteDB(t))
	})
	t.Run("MySQL", func(t *testing.T) {
		check(t, setupMySQLDB(t))
	})
}

func TestRepository__DeleteResolvedBefore(t *testing.T) {
	check := func(t *testing.T, repo Repository) {
		pending := writeLinkRequest(t, repo, "merchant")
		old := writeLinkRequest(t, repo, "merchant")
		recent := writeLinkRequest(t, repo, "merchant")

		if ok, err := repo.ResolveLinkRequest(old.RequestID, Resolved{
			State:      client.LinkSuccess,
			Outcome:    client.Success,
			Candidate:  verifiedAccount(),
			ResolvedAt: testNow.Add(-48 * time.Hour),
		}); !ok || err != nil {
			t.Fatalf("ok=%v error=%v", ok, err)
		}
		if ok, err := repo.CancelLinkRequest(recent.RequestID, testNow); !ok || err != nil {
			t.Fatalf("ok=%v error=%v", ok, err)
		}

		n, err := repo.DeleteResolvedBefore(testNow.Add(-24 * time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("deleted %d", n)
		}

		if _, err := repo.GetLinkRequest(old.RequestID, ""); err != ErrNotFound {
			t.Errorf("expected ErrNotFound: %v", err)
		}
		for _, id := range []string{pending.RequestID, recent.RequestID} {
			if _, err := repo.GetLinkRequest(id, ""); err != nil {
				t.Errorf("%s: %v", id, err)
			}
		}
	}

	t.Run("SQLite", func(t *testing.T) {
		check(t, setupSQLiteDB(t))
	})
	t.Run("MySQL", func(t *testing.T) {
		check(t, setupMySQLDB(t))
	})
	t.Run("Mock", func(t *testing.T) {
		check(t, &MockRepository{})
	})
}

func TestRepository__ExpirePendingBefore(t *testing.T) {
	check := func(t *testing.T, repo Repository) {
		stale := writeLinkRequest(t, repo, "merchant")
		cancelled := writeLinkRequest(t, repo, "merchant")
		if ok, err := repo.CancelLinkRequest(cancelled.RequestID, testNow); !ok || err != nil {
			t.Fatalf("ok=%v error=%v", ok, err)
		}
		fresh := &client.LinkRequest{
			RequestID:  base.ID(),
			MerchantID: "merchant",
			State:      client.LinkPending,
			CreatedAt:  testNow.Add(time.Hour),
		}
		if err := repo.CreateLinkRequest(fresh, "user"); err != nil {
			t.Fatal(err)
		}

		expiredAt := testNow.Add(2 * time.Hour)
		n, err := repo.ExpirePendingBefore(testNow.Add(time.Minute), Resolved{
			State:      client.LinkFailed,
			Outcome:    client.TimeoutError,
			ErrorKey:   ErrorKey(client.TimeoutError),
			ResolvedAt: expiredAt,
		})
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("expired %d", n)
		}

		status, err := repo.GetLinkRequest(stale.RequestID, "")
		if err != nil {
			t.Fatal(err)
		}
		if status.State != client.LinkFailed || status.Signal != client.SignalError || status.Outcome != client.TimeoutError {
			t.Errorf("unexpected status: %#v", status)
		}
		if status.ErrorKey != ErrorKey(client.TimeoutError) {
			t.Errorf("errorKey=%q", status.ErrorKey)
		}
		if status.ResolvedAt == nil || !status.ResolvedAt.Equal(expiredAt) {
			t.Errorf("resolvedAt=%v", status.ResolvedAt)
		}

		if status, _ := repo.GetLinkRequest(cancelled.RequestID, ""); status == nil || status.State != client.LinkCancelled {
			t.Errorf("unexpected cancelled status: %#v", status)
		}
		if status, _ := repo.GetLinkRequest(fresh.RequestID, ""); status == nil || status.State != client.LinkPending {
			t.Errorf("unexpected fresh status: %#v", status)
		}
	}

	t.Run("SQLite", func(t *testing.T) {
		check(t, setupSQLiteDB(t))
	})
	t.Run("MySQL", func(t *testing.T) {
		check(t, setupMySQLDB(t))
	})
	t.Run("Mock", func(t *testing.T) {
		check(t, &MockRepository{})
	})
}

func TestNewRepo(t *testing.T) {
	db := database.CreateTestSqliteDB(t)
	defer db.Close()

	repo := NewRepo(db.DB, secrets.TestAccountKeeper(t))
	writeLinkRequest(t, repo, "merchant")
}
