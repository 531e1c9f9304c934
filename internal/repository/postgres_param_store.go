package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domrepo "RangePulse/internal/domain/repository"
	applogger "RangePulse/pkg/logger"
	pkgpg "RangePulse/pkg/postgres"
)

// PGParamStore implements ParamStore backed by PostgreSQL. All three stages
// share one table; the stage column discriminates and the params column
// holds the stage-specific document.
type PGParamStore struct {
	pool *pgxpool.Pool
	l    *applogger.Logger
}

func NewPGParamStore(pg *pkgpg.Client) *PGParamStore {
	return &PGParamStore{pool: pg.Pool()}
}

// SetLogger injects a structured logger.
func (s *PGParamStore) SetLogger(l *applogger.Logger) { s.l = l }

// ParamSchema returns idempotent DDL for the parameter table.
func ParamSchema() []string {
	return []string{`
        CREATE TABLE IF NOT EXISTS optimizer_params (
            id         BIGSERIAL PRIMARY KEY,
            stage      TEXT NOT NULL,
            params     JSONB NOT NULL,
            is_active  BOOLEAN NOT NULL DEFAULT FALSE,
            score      DOUBLE PRECISION NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS optimizer_params_stage_score_idx
            ON optimizer_params (stage, score DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS optimizer_params_stage_active_idx
            ON optimizer_params (stage) WHERE is_active`,
	}
}

func (s *PGParamStore) Insert(ctx context.Context, stage domrepo.Stage, params interface{}) (int64, error) {
	doc, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("marshal params: %w", err)
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO optimizer_params (stage, params) VALUES ($1, $2) RETURNING id`,
		string(stage), doc,
	).Scan(&id)
	if err != nil {
		s.logError("insert params", stage, err)
		return 0, fmt.Errorf("insert params: %w", domrepo.ErrStoreUnavailable)
	}
	return id, nil
}

func (s *PGParamStore) GetActive(ctx context.Context, stage domrepo.Stage) (*domrepo.StoredParams, error) {
	return s.queryOne(ctx, stage, `
        SELECT id, stage, params, is_active, score, created_at
        FROM optimizer_params
        WHERE stage = $1 AND is_active
        LIMIT 1`)
}

func (s *PGParamStore) BestByScore(ctx context.Context, stage domrepo.Stage) (*domrepo.StoredParams, error) {
	return s.queryOne(ctx, stage, `
        SELECT id, stage, params, is_active, score, created_at
        FROM optimizer_params
        WHERE stage = $1
        ORDER BY score DESC, id ASC
        LIMIT 1`)
}

func (s *PGParamStore) queryOne(ctx context.Context, stage domrepo.Stage, query string) (*domrepo.StoredParams, error) {
	var p domrepo.StoredParams
	err := s.pool.QueryRow(ctx, query, string(stage)).Scan(
		&p.ID, &p.Stage, &p.Params, &p.IsActive, &p.Score, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domrepo.ErrNoParams
	}
	if err != nil {
		s.logError("query params", stage, err)
		return nil, fmt.Errorf("query params: %w", domrepo.ErrStoreUnavailable)
	}
	return &p, nil
}

// SetActive deactivates every row for the stage and activates id in one
// transaction, preserving the at-most-one-active invariant even if the
// second statement fails.
func (s *PGParamStore) SetActive(ctx context.Context, stage domrepo.Stage, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		s.logError("begin set_active", stage, err)
		return fmt.Errorf("begin set active: %w", domrepo.ErrStoreUnavailable)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE optimizer_params SET is_active = FALSE, updated_at = now() WHERE stage = $1 AND is_active`,
		string(stage),
	); err != nil {
		s.logError("deactivate params", stage, err)
		return fmt.Errorf("deactivate params: %w", domrepo.ErrStoreUnavailable)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE optimizer_params SET is_active = TRUE, updated_at = now() WHERE stage = $1 AND id = $2`,
		string(stage), id,
	)
	if err != nil {
		s.logError("activate params", stage, err)
		return fmt.Errorf("activate params: %w", domrepo.ErrStoreUnavailable)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("activate params id=%d: %w", id, domrepo.ErrNoParams)
	}

	if err := tx.Commit(ctx); err != nil {
		s.logError("commit set_active", stage, err)
		return fmt.Errorf("commit set active: %w", domrepo.ErrStoreUnavailable)
	}
	return nil
}

func (s *PGParamStore) UpdateScore(ctx context.Context, stage domrepo.Stage, id int64, score float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE optimizer_params SET score = $3, updated_at = now() WHERE stage = $1 AND id = $2`,
		string(stage), id, score,
	)
	if err != nil {
		s.logError("update score", stage, err)
		return fmt.Errorf("update score: %w", domrepo.ErrStoreUnavailable)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update score id=%d: %w", id, domrepo.ErrNoParams)
	}
	return nil
}

func (s *PGParamStore) logError(op string, stage domrepo.Stage, err error) {
	if s.l == nil {
		return
	}
	s.l.Error("postgres param store error",
		applogger.String("op", op),
		applogger.String("stage", string(stage)),
		applogger.Error(err),
	)
}
