package checks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS used_codes (
    id SERIAL PRIMARY KEY,
    card_type TEXT NOT NULL,
    code TEXT NOT NULL UNIQUE,
    used_at TEXT NOT NULL,
    reference TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS check_logs (
    id SERIAL PRIMARY KEY,
    ip TEXT NOT NULL,
    card_type TEXT NOT NULL,
    code_masked TEXT NOT NULL,
    status TEXT NOT NULL,
    checked_at TEXT NOT NULL,
    reference TEXT NOT NULL
);`

type PostgresStore struct {
	db *pgxpool.Pool
}

// OpenPostgres connects with a small pool and fails fast when the database
// is unreachable.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// InitSchema creates both tables when missing.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	slog.Debug("Check tables ready")
	return nil
}

func (s *PostgresStore) IsUsed(ctx context.Context, code string) (bool, error) {
	var one int
	err := s.db.QueryRow(ctx, `SELECT 1 FROM used_codes WHERE code = $1 LIMIT 1`, code).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) MarkUsed(ctx context.Context, cardType, code, reference string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO used_codes (card_type, code, used_at, reference)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (code) DO NOTHING`,
		cardType, code, nowISO(time.Now()), reference,
	)
	return err
}

func (s *PostgresStore) LogCheck(ctx context.Context, rec LogRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO check_logs (ip, card_type, code_masked, status, checked_at, reference)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.IP, rec.CardType, rec.CodeMasked, rec.Status, rec.CheckedAt, rec.Reference,
	)
	return err
}
