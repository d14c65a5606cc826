package userprofile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the table used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS user_profiles (
    user_id       TEXT        NOT NULL,
    experiment_id TEXT        NOT NULL,
    variation_id  TEXT        NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, experiment_id)
)`

const (
	selectProfileSQL  = `SELECT experiment_id, variation_id FROM user_profiles WHERE user_id = $1`
	upsertDecisionSQL = `
INSERT INTO user_profiles (user_id, experiment_id, variation_id, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id, experiment_id)
DO UPDATE SET variation_id = EXCLUDED.variation_id, updated_at = now()`
	deleteProfileSQL = `DELETE FROM user_profiles WHERE user_id = $1`
)

// DBTX is the subset of *pgxpool.Pool and pgx.Tx the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore keeps one row per (user, experiment) decision.
type PostgresStore struct {
	db DBTX
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the profile table if it does not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create user_profiles table: %w", err)
	}
	return nil
}

func (p *PostgresStore) Lookup(ctx context.Context, userID string) (map[string]any, error) {
	rows, err := p.db.Query(ctx, selectProfileSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	defer rows.Close()

	profile := New(userID)
	found := false
	for rows.Next() {
		var experimentID, variationID string
		if err := rows.Scan(&experimentID, &variationID); err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		profile.SaveDecision(experimentID, variationID)
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read profile rows: %w", err)
	}
	if !found {
		return nil, nil
	}
	return profile.ToMap(), nil
}

// Save upserts every decision in the profile in a single round trip.
func (p *PostgresStore) Save(ctx context.Context, profile map[string]any) error {
	prof, err := FromMap(profile)
	if err != nil {
		return err
	}
	if len(prof.ExperimentBucketMap) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for expID, d := range prof.ExperimentBucketMap {
		batch.Queue(upsertDecisionSQL, prof.UserID, expID, d.VariationID)
	}
	results := p.db.SendBatch(ctx, batch)
	defer results.Close()

	for range prof.ExperimentBucketMap {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert profile decision: %w", err)
		}
	}
	return nil
}

func (p *PostgresStore) Remove(ctx context.Context, userID string) error {
	if _, err := p.db.Exec(ctx, deleteProfileSQL, userID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (p *PostgresStore) Close() error {
	return nil
}
