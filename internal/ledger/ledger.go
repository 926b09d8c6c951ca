// Package ledger implements the Action Ledger (§4.5): the append-only,
// time-indexed history of every proposal, decision, execution, and
// tick-level event. Grounded on the teacher's internal/infrastructure/db
// connection manager and internal/persistence/postgres repository shape
// (sqlx.DB, context-scoped timeouts, typed repository methods over raw
// SQL) — generalized from "trades/regimes/premove rows" to one
// action_records table plus an alerts side table.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// Ledger is the Action Ledger's contract: the Decision Engine, Guardrail
// Gate, and control surface never see raw SQL, only this interface.
type Ledger interface {
	// Append writes one ActionRecord. It enforces invariant I1 ("every
	// Proposal resolves to exactly one ActionRecord") by key on ProposalRef:
	// a duplicate ProposalRef whose existing row is still PENDING is
	// overwritten with the new (terminal) row — this is the
	// queued-then-resolved transition an APPROVAL_REQUIRED proposal goes
	// through between GATING and Approve/Reject/ExpireApprovals. A
	// duplicate whose existing row is already terminal is a no-op, so a
	// retried tick with identical inputs never produces a second row (§8
	// round-trip property: "replay is a no-op").
	Append(ctx context.Context, rec domain.ActionRecord) error

	// AppendAlert writes one Alert row (SUPPLEMENTED FEATURES #1). Alerts
	// never gate or block proposals; they are a parallel observability
	// stream in the same append-only store.
	AppendAlert(ctx context.Context, alert domain.Alert) error

	// RangeByCampaign returns ActionRecords for ref in [since, until),
	// newest first.
	RangeByCampaign(ctx context.Context, ref domain.CampaignRef, since, until time.Time) ([]domain.ActionRecord, error)

	// RangeByOutcome returns ActionRecords with the given outcome in
	// [since, until), newest first.
	RangeByOutcome(ctx context.Context, outcome domain.ActionOutcome, since, until time.Time) ([]domain.ActionRecord, error)

	// RecentActions returns every ActionRecord recorded at or after since,
	// newest first — the control surface's get_recent_actions verb (§6).
	RecentActions(ctx context.Context, since time.Time) ([]domain.ActionRecord, error)

	// ByProposal returns the ActionRecord for proposalID, if one exists —
	// used by explain() (SUPPLEMENTED FEATURES #2) and by Append's
	// idempotence check.
	ByProposal(ctx context.Context, proposalID string) (*domain.ActionRecord, bool, error)

	// CountersSince reconstructs DailyCounters by scanning every
	// AUTO_EXECUTE ActionRecord recorded at or after localMidnight — the
	// §4.5 recovery contract: "there is no separate counter store to go
	// out of sync."
	CountersSince(ctx context.Context, localMidnight time.Time) (domain.DailyCounters, error)
}

// SQLStore is the sqlx-backed Ledger, usable against either the Postgres
// production driver or the embedded sqlite dev driver — the query text is
// written with '?' placeholders and rebound per-driver via sqlx.Rebind, the
// same pattern the teacher's connection.go applies per-backend pooling
// settings rather than per-backend query text.
type SQLStore struct {
	db *sqlx.DB
}

func newSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// actionRow is the flattened column shape action_records persists as.
// BeforeState/AfterState/Decision are stored as JSON text columns rather
// than normalized into further tables — the ledger is read by range scan,
// not joined, so the extra tables would buy nothing (§4.5: "the ledger is
// the source of truth for what did the system do, and why, at time T").
type actionRow struct {
	ID           string         `db:"id"`
	ProposalRef  string         `db:"proposal_ref"`
	Platform     string         `db:"platform"`
	ExternalID   string         `db:"external_id"`
	Kind         string         `db:"kind"`
	Outcome      string         `db:"outcome"`
	DecisionJSON string         `db:"decision_json"`
	BeforeJSON   string         `db:"before_json"`
	AfterJSON    sql.NullString `db:"after_json"`
	ExecutedAt   sql.NullTime   `db:"executed_at"`
	ErrorText    string         `db:"error_text"`
	Message      string         `db:"message"`
	RecordedAt   time.Time      `db:"recorded_at"`
}

func toRow(rec domain.ActionRecord) (actionRow, error) {
	decisionJSON, err := json.Marshal(rec.Decision)
	if err != nil {
		return actionRow{}, fmt.Errorf("ledger: marshal decision: %w", err)
	}
	beforeJSON, err := json.Marshal(rec.BeforeState)
	if err != nil {
		return actionRow{}, fmt.Errorf("ledger: marshal before_state: %w", err)
	}
	row := actionRow{
		ID:           rec.ID,
		ProposalRef:  rec.ProposalRef,
		Platform:     string(rec.Campaign.Platform),
		ExternalID:   rec.Campaign.ExternalID,
		Kind:         string(rec.Kind),
		Outcome:      string(rec.Outcome),
		DecisionJSON: string(decisionJSON),
		BeforeJSON:   string(beforeJSON),
		ErrorText:    rec.Error,
		Message:      rec.Message,
		RecordedAt:   rec.RecordedAt,
	}
	if rec.AfterState != nil {
		afterJSON, err := json.Marshal(rec.AfterState)
		if err != nil {
			return actionRow{}, fmt.Errorf("ledger: marshal after_state: %w", err)
		}
		row.AfterJSON = sql.NullString{String: string(afterJSON), Valid: true}
	}
	if rec.ExecutedAt != nil {
		row.ExecutedAt = sql.NullTime{Time: *rec.ExecutedAt, Valid: true}
	}
	return row, nil
}

func fromRow(row actionRow) (domain.ActionRecord, error) {
	rec := domain.ActionRecord{
		ID:          row.ID,
		ProposalRef: row.ProposalRef,
		Campaign:    domain.CampaignRef{Platform: domain.PlatformID(row.Platform), ExternalID: row.ExternalID},
		Kind:        domain.EntryKind(row.Kind),
		Outcome:     domain.ActionOutcome(row.Outcome),
		Error:       row.ErrorText,
		Message:     row.Message,
		RecordedAt:  row.RecordedAt,
	}
	if err := json.Unmarshal([]byte(row.DecisionJSON), &rec.Decision); err != nil {
		return rec, fmt.Errorf("ledger: unmarshal decision: %w", err)
	}
	if err := json.Unmarshal([]byte(row.BeforeJSON), &rec.BeforeState); err != nil {
		return rec, fmt.Errorf("ledger: unmarshal before_state: %w", err)
	}
	if row.AfterJSON.Valid {
		var after domain.CampaignSnapshot
		if err := json.Unmarshal([]byte(row.AfterJSON.String), &after); err != nil {
			return rec, fmt.Errorf("ledger: unmarshal after_state: %w", err)
		}
		rec.AfterState = &after
	}
	if row.ExecutedAt.Valid {
		t := row.ExecutedAt.Time
		rec.ExecutedAt = &t
	}
	return rec, nil
}

func (s *SQLStore) Append(ctx context.Context, rec domain.ActionRecord) error {
	existing, found, err := s.ByProposal(ctx, rec.ProposalRef)
	if err != nil {
		return err
	}

	row, err := toRow(rec)
	if err != nil {
		return err
	}

	if found && existing.ProposalRef != "" {
		if existing.Outcome != domain.OutcomePending {
			return nil // already terminal: replay is a no-op.
		}
		// queued -> resolved: overwrite the PENDING row with the terminal one.
		query := s.db.Rebind(`
			UPDATE action_records SET
				id = ?, kind = ?, outcome = ?, decision_json = ?, before_json = ?,
				after_json = ?, executed_at = ?, error_text = ?, message = ?, recorded_at = ?
			WHERE proposal_ref = ?`)
		_, err = s.db.ExecContext(ctx, query,
			row.ID, row.Kind, row.Outcome, row.DecisionJSON, row.BeforeJSON,
			row.AfterJSON, row.ExecutedAt, row.ErrorText, row.Message, row.RecordedAt, row.ProposalRef)
		if err != nil {
			return fmt.Errorf("ledger: resolve pending: %w", err)
		}
		return nil
	}

	query := s.db.Rebind(`
		INSERT INTO action_records
			(id, proposal_ref, platform, external_id, kind, outcome, decision_json, before_json, after_json, executed_at, error_text, message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		row.ID, row.ProposalRef, row.Platform, row.ExternalID, row.Kind, row.Outcome,
		row.DecisionJSON, row.BeforeJSON, row.AfterJSON, row.ExecutedAt, row.ErrorText, row.Message, row.RecordedAt)
	if err != nil {
		return fmt.Errorf("ledger: append: %w", err)
	}
	return nil
}

func (s *SQLStore) AppendAlert(ctx context.Context, alert domain.Alert) error {
	query := s.db.Rebind(`
		INSERT INTO alerts (id, type, severity, platform, external_id, message, metric_name, value, threshold, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, uuid.NewString(),
		string(alert.Type), string(alert.Severity), string(alert.Campaign.Platform), alert.Campaign.ExternalID,
		alert.Message, alert.MetricName, alert.Value, alert.Threshold, alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("ledger: append alert: %w", err)
	}
	return nil
}

func (s *SQLStore) ByProposal(ctx context.Context, proposalID string) (*domain.ActionRecord, bool, error) {
	if proposalID == "" {
		return nil, false, nil
	}
	query := s.db.Rebind(`SELECT * FROM action_records WHERE proposal_ref = ? LIMIT 1`)
	var row actionRow
	err := s.db.GetContext(ctx, &row, query, proposalID)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ledger: by proposal: %w", err)
	}
	rec, err := fromRow(row)
	if err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (s *SQLStore) RangeByCampaign(ctx context.Context, ref domain.CampaignRef, since, until time.Time) ([]domain.ActionRecord, error) {
	query := s.db.Rebind(`
		SELECT * FROM action_records
		WHERE platform = ? AND external_id = ? AND recorded_at >= ? AND recorded_at < ?
		ORDER BY recorded_at DESC`)
	var rows []actionRow
	if err := s.db.SelectContext(ctx, &rows, query, string(ref.Platform), ref.ExternalID, since, until); err != nil {
		return nil, fmt.Errorf("ledger: range by campaign: %w", err)
	}
	return fromRows(rows)
}

func (s *SQLStore) RangeByOutcome(ctx context.Context, outcome domain.ActionOutcome, since, until time.Time) ([]domain.ActionRecord, error) {
	query := s.db.Rebind(`
		SELECT * FROM action_records
		WHERE outcome = ? AND recorded_at >= ? AND recorded_at < ?
		ORDER BY recorded_at DESC`)
	var rows []actionRow
	if err := s.db.SelectContext(ctx, &rows, query, string(outcome), since, until); err != nil {
		return nil, fmt.Errorf("ledger: range by outcome: %w", err)
	}
	return fromRows(rows)
}

func (s *SQLStore) RecentActions(ctx context.Context, since time.Time) ([]domain.ActionRecord, error) {
	query := s.db.Rebind(`SELECT * FROM action_records WHERE recorded_at >= ? ORDER BY recorded_at DESC`)
	var rows []actionRow
	if err := s.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("ledger: recent actions: %w", err)
	}
	return fromRows(rows)
}

func (s *SQLStore) CountersSince(ctx context.Context, localMidnight time.Time) (domain.DailyCounters, error) {
	counters := domain.NewDailyCounters(localMidnight)
	recs, err := s.RangeByOutcome(ctx, domain.OutcomeSuccess, localMidnight, localMidnight.Add(24*time.Hour))
	if err != nil {
		return counters, err
	}
	for _, rec := range recs {
		if rec.Decision.Outcome != domain.DecisionAutoExecute {
			continue
		}
		counters.AdjustmentsMade++
		if rec.AfterState == nil {
			continue
		}
		delta := rec.AfterState.DailyBudget.Sub(rec.BeforeState.DailyBudget).Abs()
		counters.BudgetMovedByCampaign[rec.Campaign] = counters.BudgetMovedByCampaign[rec.Campaign].Add(delta)
		counters.BudgetMovedByPlatform[rec.Campaign.Platform] = counters.BudgetMovedByPlatform[rec.Campaign.Platform].Add(delta)
	}
	return counters, nil
}

func fromRows(rows []actionRow) ([]domain.ActionRecord, error) {
	out := make([]domain.ActionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Schema is the DDL both backends apply at startup. It is intentionally
// backend-neutral SQL (no JSONB, no SERIAL) so the same statement runs
// against Postgres and sqlite unchanged.
const Schema = `
CREATE TABLE IF NOT EXISTS action_records (
	id            TEXT PRIMARY KEY,
	proposal_ref  TEXT NOT NULL,
	platform      TEXT NOT NULL,
	external_id   TEXT NOT NULL,
	kind          TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	decision_json TEXT NOT NULL,
	before_json   TEXT NOT NULL,
	after_json    TEXT,
	executed_at   TIMESTAMP,
	error_text    TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	recorded_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_action_records_campaign_time ON action_records (platform, external_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_action_records_outcome_time ON action_records (outcome, recorded_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_action_records_proposal ON action_records (proposal_ref) WHERE proposal_ref <> '';

CREATE TABLE IF NOT EXISTS alerts (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	platform    TEXT NOT NULL,
	external_id TEXT NOT NULL,
	message     TEXT NOT NULL,
	metric_name TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	threshold   DOUBLE PRECISION NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
`
