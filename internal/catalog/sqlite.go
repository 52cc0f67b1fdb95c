package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/rigbuild/internal/types"
	_ "modernc.org/sqlite"
)

// SQLiteCatalog is the SQLite-backed parts catalog and session store.
type SQLiteCatalog struct {
	db *sql.DB
}

var _ Store = (*SQLiteCatalog)(nil)

// NewSQLiteCatalog opens (or creates) the database at dbPath.
// It applies pragmas and runs migrations.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

const partColumns = `id, category, brand, model, price_usd, image_path, spec`

func scanPart(scanner interface{ Scan(...any) error }) (*types.Part, error) {
	var p types.Part
	var category, specJSON string

	err := scanner.Scan(&p.ID, &category, &p.Brand, &p.Model, &p.PriceUSD, &p.ImagePath, &specJSON)
	if err != nil {
		return nil, err
	}
	p.Category = types.Category(category)

	if specJSON != "" && specJSON != "{}" {
		if err := json.Unmarshal([]byte(specJSON), &p.Spec); err != nil {
			return nil, fmt.Errorf("parse spec JSON for %s: %w", p.ID, err)
		}
	}

	return &p, nil
}

func (s *SQLiteCatalog) queryParts(ctx context.Context, query string, args ...any) ([]types.Part, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query parts: %w", err)
	}
	defer rows.Close()

	parts := []types.Part{}
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		parts = append(parts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return parts, nil
}

// PartsByCategory returns the parts of one category, cheapest first.
func (s *SQLiteCatalog) PartsByCategory(ctx context.Context, cat types.Category) ([]types.Part, error) {
	return s.queryParts(ctx, `
		SELECT `+partColumns+`
		FROM parts
		WHERE category = ?
		ORDER BY price_usd ASC, id ASC
	`, string(cat))
}

// ListParts returns the whole catalog grouped by category, cheapest first.
func (s *SQLiteCatalog) ListParts(ctx context.Context) ([]types.Part, error) {
	return s.queryParts(ctx, `
		SELECT `+partColumns+`
		FROM parts
		ORDER BY category ASC, price_usd ASC, id ASC
	`)
}

// GetPart retrieves a part by ID.
func (s *SQLiteCatalog) GetPart(ctx context.Context, id string) (*types.Part, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+partColumns+`
		FROM parts
		WHERE id = ?
	`, id)

	p, err := scanPart(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return p, nil
}

// UpsertParts inserts parts, updating rows that already exist either by id
// or by (category, brand, model). A natural-key match takes the incoming id,
// so a reseed with new ids stays addressable. The whole batch is one
// transaction.
func (s *SQLiteCatalog) UpsertParts(ctx context.Context, parts []types.Part) (int, error) {
	if len(parts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO parts (id, category, brand, model, price_usd, image_path, spec, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, brand, model) DO UPDATE SET
			id = excluded.id,
			price_usd = excluded.price_usd,
			image_path = excluded.image_path,
			spec = excluded.spec,
			updated_at = excluded.updated_at
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			brand = excluded.brand,
			model = excluded.model,
			price_usd = excluded.price_usd,
			image_path = excluded.image_path,
			spec = excluded.spec,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	nowStr := time.Now().UTC().Format(time.RFC3339)

	for _, p := range parts {
		specJSON := "{}"
		if len(p.Spec) > 0 {
			b, err := json.Marshal(p.Spec)
			if err != nil {
				return 0, fmt.Errorf("marshal spec for %s: %w", p.ID, err)
			}
			specJSON = string(b)
		}

		_, err := stmt.ExecContext(ctx,
			p.ID,
			string(p.Category),
			p.Brand,
			p.Model,
			p.PriceUSD,
			p.ImagePath,
			specJSON,
			nowStr,
			nowStr,
		)
		if err != nil {
			return 0, fmt.Errorf("upsert part %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return len(parts), nil
}

// CountParts returns the number of parts in the catalog.
func (s *SQLiteCatalog) CountParts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM parts").Scan(&count)
	return count, err
}
