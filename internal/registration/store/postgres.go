package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"weict/internal/registration/models"
	"weict/pkg/platform/sentinel"
)

// PostgresStore persists registrations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registration store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the registrations table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create registrations table: %w", classify(err))
	}
	return nil
}

// Create inserts one registration on a connection scoped to this call. The
// connection goes back to the pool on every return path.
func (s *PostgresStore) Create(ctx context.Context, sub models.Submission) (*models.Registration, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", classify(err))
	}
	defer conn.Close()

	reg := &models.Registration{
		Name:        sub.Name,
		Email:       sub.Email,
		Phone:       sub.Phone,
		Institution: sub.Institution,
		Topic:       sub.Topic,
	}
	query := `
		INSERT INTO registrations (name, email, phone, institution, topic)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, registered_at
	`
	err = conn.QueryRowContext(ctx, query,
		sub.Name, sub.Email, sub.Phone, sub.Institution, sub.Topic,
	).Scan(&reg.ID, &reg.RegisteredAt)
	if err != nil {
		return nil, fmt.Errorf("insert registration: %w", classify(err))
	}
	return reg, nil
}

// Count returns the number of stored registrations.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", classify(err))
	}
	return n, nil
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// classify marks connection-level failures as sentinel.ErrUnavailable so
// callers can tell an outage from a rejected statement.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08 is connection exception, 57P0x is operator intervention
		// (admin shutdown, cannot connect now).
		if pqErr.Code.Class() == "08" || strings.HasPrefix(string(pqErr.Code), "57P0") {
			return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
		}
		return err
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}
