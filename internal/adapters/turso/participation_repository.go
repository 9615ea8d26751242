package turso

import (
	"context"
	"database/sql"
	"time"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

type ParticipationRepository struct {
	db *sql.DB
}

func NewParticipationRepository(db *sql.DB) *ParticipationRepository {
	return &ParticipationRepository{db: db}
}

// Record applies dedup and counter increments in one transaction. The
// participant row's primary key is the dedup key; its converted flag only
// ever moves from 0 to 1.
func (r *ParticipationRepository) Record(ctx context.Context, rec domain.ParticipationRecord) (domain.IngestOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", Classify("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := rec.Timestamp.UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO experiment_participants (experiment_id, participant_id, variant_name, converted, first_seen_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (experiment_id, participant_id) DO NOTHING`,
		rec.ExperimentID, rec.ParticipantID, rec.VariantName, boolToInt(rec.Converted), ts, ts,
	)
	if err != nil {
		return "", Classify("failed to insert participant", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return "", Classify("failed to read affected rows", err)
	}

	var outcome domain.IngestOutcome
	switch {
	case inserted == 1:
		if err := incrementCounters(ctx, tx, rec.ExperimentID, rec.VariantName, 1, boolToInt(rec.Converted)); err != nil {
			return "", err
		}
		outcome = domain.IngestRecorded

	default:
		var variant string
		var converted int64
		err := tx.QueryRowContext(ctx, `
			SELECT variant_name, converted FROM experiment_participants
			WHERE experiment_id = ? AND participant_id = ?`,
			rec.ExperimentID, rec.ParticipantID,
		).Scan(&variant, &converted)
		if err != nil {
			return "", Classify("failed to read participant", err)
		}
		if variant != rec.VariantName {
			return "", domain.Validationf("participant %s is already counted under variant %q", rec.ParticipantID, variant)
		}
		if !rec.Converted || converted == 1 {
			return domain.IngestDuplicateIgnored, nil
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE experiment_participants SET converted = 1, updated_at = ?
			WHERE experiment_id = ? AND participant_id = ? AND converted = 0`,
			ts, rec.ExperimentID, rec.ParticipantID,
		)
		if err != nil {
			return "", Classify("failed to mark conversion", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.IngestDuplicateIgnored, nil
		}
		if err := incrementCounters(ctx, tx, rec.ExperimentID, rec.VariantName, 0, 1); err != nil {
			return "", err
		}
		outcome = domain.IngestConverted
	}

	if err := tx.Commit(); err != nil {
		return "", Classify("failed to commit participation", err)
	}
	return outcome, nil
}

func incrementCounters(ctx context.Context, tx *sql.Tx, experimentID, variant string, participants, conversions int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO variant_counters (experiment_id, variant_name, participants, conversions)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (experiment_id, variant_name) DO UPDATE SET
			participants = participants + excluded.participants,
			conversions = conversions + excluded.conversions`,
		experimentID, variant, participants, conversions,
	)
	return Classify("failed to increment counters", err)
}

func (r *ParticipationRepository) Snapshot(ctx context.Context, experimentID string) (domain.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT variant_name, participants, conversions FROM variant_counters
		WHERE experiment_id = ?`, experimentID)
	if err != nil {
		return nil, Classify("failed to read counters", err)
	}
	defer rows.Close()

	snap := make(domain.Snapshot)
	for rows.Next() {
		var name string
		var c domain.VariantCounters
		if err := rows.Scan(&name, &c.Participants, &c.Conversions); err != nil {
			return nil, Classify("failed to scan counters", err)
		}
		snap[name] = c
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("failed to read counters", err)
	}
	return snap, nil
}

func (r *ParticipationRepository) DeleteExperiment(ctx context.Context, experimentID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Classify("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM experiment_participants WHERE experiment_id = ?`, experimentID); err != nil {
		return Classify("failed to delete participants", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM variant_counters WHERE experiment_id = ?`, experimentID); err != nil {
		return Classify("failed to delete counters", err)
	}
	return Classify("failed to commit delete", tx.Commit())
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
