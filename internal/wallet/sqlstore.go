package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLStore keeps wallet records in the wallet_identities table.
type SQLStore struct {
	DB *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore { return &SQLStore{DB: db} }

// Put relies on the primary key so two writers racing on one label cannot both win.
func (s *SQLStore) Put(ctx context.Context, label string, data []byte) error {
	res, err := s.DB.ExecContext(ctx, `INSERT INTO wallet_identities(label, payload) VALUES ($1,$2) ON CONFLICT (label) DO NOTHING`, label, data)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", label, ErrAlreadyExists)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, label string) ([]byte, error) {
	var payload []byte
	err := s.DB.GetContext(ctx, &payload, `SELECT payload FROM wallet_identities WHERE label=$1`, label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", label, ErrNotFound)
	}
	return payload, err
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	labels := []string{}
	if err := s.DB.SelectContext(ctx, &labels, `SELECT label FROM wallet_identities ORDER BY label`); err != nil {
		return nil, err
	}
	return labels, nil
}

func (s *SQLStore) Exists(ctx context.Context, label string) (bool, error) {
	var n int
	if err := s.DB.GetContext(ctx, &n, `SELECT COUNT(1) FROM wallet_identities WHERE label=$1`, label); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) Remove(ctx context.Context, label string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM wallet_identities WHERE label=$1`, label)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", label, ErrNotFound)
	}
	return nil
}
