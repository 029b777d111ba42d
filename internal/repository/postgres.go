// Package repository содержит журнал подтверждений оплат в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/emind-bff/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pool описывает используемую часть pgxpool.Pool.
type pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresRepository хранит журнал подтверждений оплат.
type PostgresRepository struct {
	pool   pool
	delays []time.Duration
}

// NewPostgresRepository создаёт репозиторий и применяет миграции схемы.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(ctx, p); err != nil {
		p.Close()
		return nil, err
	}

	return newRepository(p), nil
}

func newRepository(p pool) *PostgresRepository {
	return &PostgresRepository{
		pool:   p,
		delays: []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second},
	}
}

func runMigrations(ctx context.Context, p *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(p)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(r.delays) {
			break
		}

		timer := time.NewTimer(r.delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// RecordVerification сохраняет запись журнала и возвращает её идентификатор.
func (r *PostgresRepository) RecordVerification(ctx context.Context, v model.Verification) (int64, error) {
	var id int64
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO payment_verifications
			   (appointment_id, payment_detail_id, role, user_id, verified, notes, succeeded, error)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id`,
			v.AppointmentID, v.PaymentDetailID, string(v.Role), v.UserID,
			v.Verified, v.Notes, v.Succeeded, v.Error,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("insert verification: %w", err)
	}
	return id, nil
}

// ListVerifications возвращает журнал по записи, начиная с последних.
func (r *PostgresRepository) ListVerifications(ctx context.Context, appointmentID int64) ([]model.Verification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, appointment_id, payment_detail_id, role, user_id, verified, notes, succeeded, error, created_at
		 FROM payment_verifications
		 WHERE appointment_id = $1
		 ORDER BY created_at DESC, id DESC`,
		appointmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("select verifications: %w", err)
	}
	defer rows.Close()

	res := []model.Verification{}
	for rows.Next() {
		var (
			v    model.Verification
			role string
		)
		if err := rows.Scan(&v.ID, &v.AppointmentID, &v.PaymentDetailID, &role, &v.UserID,
			&v.Verified, &v.Notes, &v.Succeeded, &v.Error, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		v.Role = model.Role(role)
		res = append(res, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
