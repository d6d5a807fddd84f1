// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package linking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/moov-io/banklink/pkg/client"
	"github.com/moov-io/banklink/pkg/secrets"
	"github.com/moov-io/banklink/x/mask"
)

// Resolved is everything recorded about a link request once reconciled.
type Resolved struct {
	State       client.LinkState
	Outcome     client.Outcome
	ErrorKey    string
	Candidate   *client.BankAccountCandidate
	BankAccount *client.BankAccount
	ResolvedAt  time.Time
}

type Repository interface {
	CreateLinkRequest(req *client.LinkRequest, userID string) error

	// GetLinkRequest returns ErrNotFound when the request doesn't exist. An empty
	// merchantID matches every merchant.
	GetLinkRequest(requestID, merchantID string) (*client.LinkStatus, error)

	// ResolveLinkRequest records the result of a pending link request. It returns
	// false when the request was no longer pending.
	ResolveLinkRequest(requestID string, res Resolved) (bool, error)

	// CancelLinkRequest marks a pending link request as cancelled. It returns
	// false when the request was no longer pending.
	CancelLinkRequest(requestID string, when time.Time) (bool, error)

	// ExpirePendingBefore resolves every pending link request created before cutoff
	// with res. It returns how many were expired.
	ExpirePendingBefore(cutoff time.Time, res Resolved) (int64, error)

	// DeleteResolvedBefore removes link requests resolved or cancelled before cutoff.
	DeleteResolvedBefore(cutoff time.Time) (int64, error)
}

func NewRepo(db *sql.DB, keeper *secrets.AccountKeeper) Repository {
	return &sqlRepo{db: db, keeper: keeper}
}

type sqlRepo struct {
	db     *sql.DB
	keeper *secrets.AccountKeeper
}

func (r *sqlRepo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *sqlRepo) CreateLinkRequest(req *client.LinkRequest, userID string) error {
	query := `insert into bank_link_requests (request_id, merchant_id, user_id, state, outcome, error_key, created_at) values (?, ?, ?, ?, '', '', ?);`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if _, err := stmt.Exec(req.RequestID, req.MerchantID, userID, req.State, req.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("problem creating link request=%q: %v", req.RequestID, err)
	}
	return nil
}

func (r *sqlRepo) GetLinkRequest(requestID, merchantID string) (*client.LinkStatus, error) {
	query := `select r.request_id, r.merchant_id, r.state, r.outcome, r.error_key, r.created_at, r.resolved_at,
c.institution_number, c.transit_number, c.masked_account_number, c.holder_name, c.verified, c.bank_account_id, c.created_at
from bank_link_requests as r
left outer join bank_link_candidates as c on r.request_id = c.request_id
where r.request_id = ? and (? = '' or r.merchant_id = ?)
limit 1;`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var (
		status     client.LinkStatus
		resolvedAt sql.NullTime

		institution, transit, masked, holder, bankAccountID sql.NullString
		verified                                            sql.NullBool
		savedAt                                             sql.NullTime
	)
	err = stmt.QueryRow(requestID, merchantID, merchantID).Scan(
		&status.RequestID,
		&status.MerchantID,
		&status.State,
		&status.Outcome,
		&status.ErrorKey,
		&status.CreatedAt,
		&resolvedAt,
		&institution,
		&transit,
		&masked,
		&holder,
		&verified,
		&bankAccountID,
		&savedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		status.ResolvedAt = &t
	}
	if bankAccountID.String != "" {
		status.BankAccount = &client.BankAccount{
			BankAccountID:       bankAccountID.String,
			MerchantID:          status.MerchantID,
			InstitutionNumber:   institution.String,
			TransitNumber:       transit.String,
			MaskedAccountNumber: masked.String,
			HolderName:          holder.String,
			Verified:            verified.Bool,
			CreatedAt:           savedAt.Time,
		}
	}
	status.Signal = signalFor(status.State)
	return &status, nil
}

func (r *sqlRepo) ResolveLinkRequest(requestID string, res Resolved) (bool, error) {
	var encrypted string
	if res.Candidate != nil {
		enc, err := r.keeper.Seal(context.Background(), res.Candidate.AccountNumber)
		if err != nil {
			return false, fmt.Errorf("problem encrypting account number: %v", err)
		}
		encrypted = enc
	}

	tx, err := r.db.Begin()
	if err != nil {
		return false, err
	}

	query := `update bank_link_requests set state = ?, outcome = ?, error_key = ?, resolved_at = ? where request_id = ? and state = ?;`
	result, err := tx.Exec(query, res.State, res.Outcome, res.ErrorKey, res.ResolvedAt.UTC(), requestID, client.LinkPending)
	if err != nil {
		tx.Rollback()
		return false, fmt.Errorf("problem resolving link request=%q: %v", requestID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		tx.Rollback()
		return false, nil
	}

	if c := res.Candidate; c != nil {
		var bankAccountID string
		if res.BankAccount != nil {
			bankAccountID = res.BankAccount.BankAccountID
		}
		query = `insert into bank_link_candidates (request_id, institution_number, transit_number, encrypted_account_number, masked_account_number, holder_name, verified, bank_account_id, created_at) values (?, ?, ?, ?, ?, ?, ?, ?, ?);`
		_, err = tx.Exec(query, requestID, c.InstitutionNumber, c.TransitNumber, encrypted, mask.AccountNumber(c.AccountNumber), c.HolderName, c.Verified, bankAccountID, res.ResolvedAt.UTC())
		if err != nil {
			tx.Rollback()
			return false, fmt.Errorf("problem saving candidate for link request=%q: %v", requestID, err)
		}
	}
	return true, tx.Commit()
}

func (r *sqlRepo) CancelLinkRequest(requestID string, when time.Time) (bool, error) {
	query := `update bank_link_requests set state = ?, resolved_at = ? where request_id = ? and state = ?;`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	result, err := stmt.Exec(client.LinkCancelled, when.UTC(), requestID, client.LinkPending)
	if err != nil {
		return false, fmt.Errorf("problem cancelling link request=%q: %v", requestID, err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (r *sqlRepo) ExpirePendingBefore(cutoff time.Time, res Resolved) (int64, error) {
	query := `update bank_link_requests set state = ?, outcome = ?, error_key = ?, resolved_at = ? where state = ? and created_at < ?;`
	result, err := r.db.Exec(query, res.State, res.Outcome, res.ErrorKey, res.ResolvedAt.UTC(), client.LinkPending, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("problem expiring link requests: %v", err)
	}
	return result.RowsAffected()
}

func (r *sqlRepo) DeleteResolvedBefore(cutoff time.Time) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}

	query := `delete from bank_link_candidates where request_id in (select request_id from bank_link_requests where state <> ? and resolved_at < ?);`
	if _, err := tx.Exec(query, client.LinkPending, cutoff.UTC()); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("problem deleting candidates: %v", err)
	}

	query = `delete from bank_link_requests where state <> ? and resolved_at < ?;`
	result, err := tx.Exec(query, client.LinkPending, cutoff.UTC())
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("problem deleting link requests: %v", err)
	}
	n, _ := result.RowsAffected()
	return n, tx.Commit()
}

func signalFor(state client.LinkState) client.Signal {
	switch state {
	case client.LinkSuccess:
		return client.SignalConnected
	case client.LinkFailed:
		return client.SignalError
	case client.LinkCancelled:
		return client.SignalIdle
	}
	return client.SignalConnecting
}
