// Package seller keeps registered seller profiles in a local sqlite file.
package seller

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

// ErrNotFound is returned when no seller has the requested id.
var ErrNotFound = errors.New("seller not found")

// Lookup resolves a seller by id. *Store satisfies it.
type Lookup interface {
	Get(ctx context.Context, id int64) (types.SellerProfile, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS sellers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	seller_ntn_cnic TEXT NOT NULL,
	seller_business_name TEXT NOT NULL,
	seller_province TEXT NOT NULL,
	seller_address TEXT NOT NULL,
	bearer_token TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_seller_ntn_cnic ON sellers(seller_ntn_cnic);
CREATE INDEX IF NOT EXISTS idx_seller_business_name ON sellers(seller_business_name);
CREATE INDEX IF NOT EXISTS idx_seller_province ON sellers(seller_province);
`

const columns = `id, seller_ntn_cnic, seller_business_name, seller_province, seller_address, bearer_token, created_at`

// createdLayout sorts lexically in time order.
const createdLayout = "2006-01-02 15:04:05.000000000"

// Store is a sqlite backed seller registry.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seller database: %w", err)
	}
	// One writer at a time keeps sqlite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise seller schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Register stores a new seller and returns its id.
func (s *Store) Register(ctx context.Context, p types.SellerProfile) (int64, error) {
	if err := check(p); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sellers (seller_ntn_cnic, seller_business_name, seller_province, seller_address, bearer_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(p.NTNCNIC),
		strings.TrimSpace(p.BusinessName),
		strings.TrimSpace(p.Province),
		strings.TrimSpace(p.Address),
		strings.TrimSpace(p.BearerToken),
		s.now().UTC().Format(createdLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save seller: %w", err)
	}
	return res.LastInsertId()
}

// Update replaces every editable field of seller id.
func (s *Store) Update(ctx context.Context, id int64, p types.SellerProfile) error {
	if err := check(p); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sellers
		SET seller_ntn_cnic = ?, seller_business_name = ?, seller_province = ?, seller_address = ?, bearer_token = ?
		WHERE id = ?`,
		strings.TrimSpace(p.NTNCNIC),
		strings.TrimSpace(p.BusinessName),
		strings.TrimSpace(p.Province),
		strings.TrimSpace(p.Address),
		strings.TrimSpace(p.BearerToken),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update seller %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("seller %d: %w", id, ErrNotFound)
	}
	return nil
}

// Get returns seller id.
func (s *Store) Get(ctx context.Context, id int64) (types.SellerProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM sellers WHERE id = ?`, id)
	p, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.SellerProfile{}, fmt.Errorf("seller %d: %w", id, ErrNotFound)
	}
	return p, err
}

// List returns every seller, newest first.
func (s *Store) List(ctx context.Context) ([]types.SellerProfile, error) {
	return s.query(ctx, `SELECT `+columns+` FROM sellers ORDER BY created_at DESC, id DESC`)
}

// Search matches term case-insensitively against NTN/CNIC, business name and
// province, ordered by business name.
func (s *Store) Search(ctx context.Context, term string) ([]types.SellerProfile, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	return s.query(ctx, `
		SELECT `+columns+` FROM sellers
		WHERE LOWER(seller_ntn_cnic) LIKE ?
		OR LOWER(seller_business_name) LIKE ?
		OR LOWER(seller_province) LIKE ?
		ORDER BY seller_business_name`, like, like, like)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]types.SellerProfile, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sellers: %w", err)
	}
	defer rows.Close()

	var out []types.SellerProfile
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (types.SellerProfile, error) {
	var (
		p       types.SellerProfile
		created sql.NullString
	)
	if err := r.Scan(&p.ID, &p.NTNCNIC, &p.BusinessName, &p.Province, &p.Address, &p.BearerToken, &created); err != nil {
		return types.SellerProfile{}, err
	}
	p.CreatedAt = parseCreated(created.String)
	return p, nil
}

func parseCreated(s string) time.Time {
	for _, layout := range []string{createdLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func check(p types.SellerProfile) error {
	var missing []string
	for _, f := range []struct{ label, value string }{
		{"NTN/CNIC", p.NTNCNIC},
		{"business name", p.BusinessName},
		{"province", p.Province},
		{"address", p.Address},
		{"bearer token", p.BearerToken},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.label)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("seller %s required", strings.Join(missing, ", "))
	}
	return nil
}
