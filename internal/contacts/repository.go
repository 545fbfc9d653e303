package contacts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"telephony-relay/pkg/utils"
)

// PostgresRepo stores contacts in the contacts table. Tags are a JSONB array.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const contactColumns = `id, owner_id, name, phone_number, email, notes, is_favorite, tags, created_at, updated_at`

func (r *PostgresRepo) Create(ctx context.Context, c Contact) error {
	tags, err := encodeTags(c.Tags)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO contacts (` + contactColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	_, err = r.db.ExecContext(ctx, q,
		c.ID,
		c.OwnerID,
		c.Name,
		c.PhoneNumber,
		nullString(c.Email),
		nullString(c.Notes),
		c.IsFavorite,
		tags,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, ownerID, id string) (Contact, error) {
	const q = `SELECT ` + contactColumns + ` FROM contacts WHERE owner_id = $1 AND id = $2`
	c, err := scanContact(r.db.QueryRowContext(ctx, q, ownerID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, err
	}
	return c, nil
}

func (r *PostgresRepo) Update(ctx context.Context, c Contact) error {
	tags, err := encodeTags(c.Tags)
	if err != nil {
		return err
	}
	const q = `
UPDATE contacts
SET name = $3, phone_number = $4, email = $5, notes = $6, is_favorite = $7, tags = $8, updated_at = $9
WHERE owner_id = $1 AND id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		c.OwnerID,
		c.ID,
		c.Name,
		c.PhoneNumber,
		nullString(c.Email),
		nullString(c.Notes),
		c.IsFavorite,
		tags,
		c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *PostgresRepo) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *PostgresRepo) ToggleFavorite(ctx context.Context, ownerID, id string, at time.Time) (bool, error) {
	const q = `
UPDATE contacts
SET is_favorite = NOT is_favorite, updated_at = $3
WHERE owner_id = $1 AND id = $2
RETURNING is_favorite
`
	var fav bool
	if err := r.db.QueryRowContext(ctx, q, ownerID, id, at).Scan(&fav); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	return fav, nil
}

func (r *PostgresRepo) List(ctx context.Context, ownerID string, f ListFilter) ([]Contact, int64, error) {
	clauses := []string{"owner_id = $1"}
	args := []any{ownerID}
	if f.FavoritesOnly {
		clauses = append(clauses, "is_favorite")
	}
	if f.Search != "" {
		args = append(args, utils.ContainsPattern(f.Search))
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(`(name ILIKE $%d ESCAPE '\' OR phone_number ILIKE $%d ESCAPE '\' OR COALESCE(email, '') ILIKE $%d ESCAPE '\')`, n, n, n))
	}
	where := strings.Join(clauses, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM contacts WHERE %s ORDER BY lower(name), id LIMIT $%d OFFSET $%d`,
		contactColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (Contact, error) {
	var (
		c            Contact
		email, notes sql.NullString
		tags         []byte
	)
	if err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Name,
		&c.PhoneNumber,
		&email,
		&notes,
		&c.IsFavorite,
		&tags,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return Contact{}, err
	}
	c.Email = email.String
	c.Notes = notes.String
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &c.Tags); err != nil {
			return Contact{}, fmt.Errorf("contacts: decode tags: %w", err)
		}
	}
	return c, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
