package turso

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

type ExperimentRepository struct {
	db *sql.DB
}

func NewExperimentRepository(db *sql.DB) *ExperimentRepository {
	return &ExperimentRepository{db: db}
}

// Create inserts the experiment and its variants in one transaction.
func (r *ExperimentRepository) Create(ctx context.Context, experiment *domain.Experiment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Classify("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO experiments (id, name, description, status, traffic_percentage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		experiment.ID,
		experiment.Name,
		experiment.Description,
		string(experiment.Status),
		experiment.TrafficPercentage,
		experiment.CreatedAt.Format(time.RFC3339Nano),
		experiment.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Classify("failed to insert experiment", err)
	}

	for i, v := range experiment.Variants {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO experiment_variants (experiment_id, position, name, description, percentage)
			VALUES (?, ?, ?, ?, ?)`,
			experiment.ID, i, v.Name, v.Description, v.Percentage,
		)
		if err != nil {
			return Classify("failed to insert variant", err)
		}
	}

	return Classify("failed to commit experiment", tx.Commit())
}

func (r *ExperimentRepository) GetByID(ctx context.Context, id string) (*domain.Experiment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, status, traffic_percentage, created_at, updated_at
		FROM experiments WHERE id = ?`, id)

	exp, err := scanExperiment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, Classify("failed to get experiment", err)
	}

	variants, err := r.variantsFor(ctx, []string{exp.ID})
	if err != nil {
		return nil, err
	}
	exp.Variants = variants[exp.ID]
	return exp, nil
}

func (r *ExperimentRepository) List(ctx context.Context) ([]*domain.Experiment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, status, traffic_percentage, created_at, updated_at
		FROM experiments ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, Classify("failed to list experiments", err)
	}
	defer rows.Close()

	var experiments []*domain.Experiment
	var ids []string
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, Classify("failed to scan experiment", err)
		}
		experiments = append(experiments, exp)
		ids = append(ids, exp.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("failed to list experiments", err)
	}

	variants, err := r.variantsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, exp := range experiments {
		exp.Variants = variants[exp.ID]
	}
	return experiments, nil
}

// CompareAndSetStatus relies on the WHERE clause for atomicity: only one
// writer can observe the old status.
func (r *ExperimentRepository) CompareAndSetStatus(ctx context.Context, id string, from, to domain.Status, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE experiments SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), at.Format(time.RFC3339Nano), id, string(from),
	)
	if err != nil {
		return false, Classify("failed to update experiment status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, Classify("failed to read affected rows", err)
	}
	return n == 1, nil
}

// Delete removes the experiment and its experiment_variants rows in one transaction.
func (r *ExperimentRepository) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, Classify("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Remote connections do not always honour the foreign_keys pragma.
	if _, err := tx.ExecContext(ctx, `DELETE FROM experiment_variants WHERE experiment_id = ?`, id); err != nil {
		return false, Classify("failed to delete variants", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM experiments WHERE id = ?`, id)
	if err != nil {
		return false, Classify("failed to delete experiment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, Classify("failed to read affected rows", err)
	}
	if err := tx.Commit(); err != nil {
		return false, Classify("failed to commit delete", err)
	}
	return n == 1, nil
}

func (r *ExperimentRepository) variantsFor(ctx context.Context, ids []string) (map[string][]domain.Variant, error) {
	out := make(map[string][]domain.Variant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT experiment_id, name, description, percentage FROM experiment_variants WHERE experiment_id IN (?` +
		strings.Repeat(", ?", len(ids)-1) + `) ORDER BY experiment_id, position`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Classify("failed to load variants", err)
	}
	defer rows.Close()

	for rows.Next() {
		var expID string
		var v domain.Variant
		if err := rows.Scan(&expID, &v.Name, &v.Description, &v.Percentage); err != nil {
			return nil, Classify("failed to scan variant", err)
		}
		out[expID] = append(out[expID], v)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("failed to load variants", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExperiment(s scanner) (*domain.Experiment, error) {
	var (
		exp                  domain.Experiment
		status               string
		createdAt, updatedAt string
	)
	if err := s.Scan(&exp.ID, &exp.Name, &exp.Description, &status, &exp.TrafficPercentage, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	exp.Status = domain.Status(status)
	exp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	exp.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &exp, nil
}
