package ingredient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS ingredients (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
	unit     TEXT NOT NULL DEFAULT ''
)`

// PGStore keeps ingredients in Postgres.
type PGStore struct {
	db *sql.DB
}

// OpenPGStore connects to dsn and creates the table if needed.
func OpenPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ingredient: open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ingredient: connect postgres: %w", err)
	}

	s := NewPGStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ingredient: create table: %w", err)
	}
	return nil
}

func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) List(ctx context.Context) ([]Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, quantity, unit FROM ingredients ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("ingredient: list: %w", err)
	}
	defer rows.Close()

	out := []Ingredient{}
	for rows.Next() {
		var it Ingredient
		if err := rows.Scan(&it.ID, &it.Name, &it.Quantity, &it.Unit); err != nil {
			return nil, fmt.Errorf("ingredient: scan: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, id string) (Ingredient, error) {
	var it Ingredient
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, quantity, unit FROM ingredients WHERE id = $1`, id).
		Scan(&it.ID, &it.Name, &it.Quantity, &it.Unit)
	if errors.Is(err, sql.ErrNoRows) {
		return Ingredient{}, ErrNotFound
	}
	if err != nil {
		return Ingredient{}, fmt.Errorf("ingredient: get %s: %w", id, err)
	}
	return it, nil
}

func (s *PGStore) Create(ctx context.Context, in Ingredient) (Ingredient, error) {
	if err := in.Validate(); err != nil {
		return Ingredient{}, err
	}
	in.ID = uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingredients (id, name, quantity, unit) VALUES ($1, $2, $3, $4)`,
		in.ID, in.Name, in.Quantity, in.Unit)
	if err != nil {
		return Ingredient{}, fmt.Errorf("ingredient: create: %w", err)
	}
	return in, nil
}

func (s *PGStore) Update(ctx context.Context, in Ingredient) (Ingredient, error) {
	if err := in.Validate(); err != nil {
		return Ingredient{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE ingredients SET name = $2, quantity = $3, unit = $4 WHERE id = $1`,
		in.ID, in.Name, in.Quantity, in.Unit)
	if err != nil {
		return Ingredient{}, fmt.Errorf("ingredient: update %s: %w", in.ID, err)
	}
	if err := expectOneRow(res); err != nil {
		return Ingredient{}, err
	}
	return in, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ingredients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ingredient: delete %s: %w", id, err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ingredient: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
