package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"telephony-relay/pkg/utils"
)

// Repository persists configurations. Implementations enforce inbound-number uniqueness.
type Repository interface {
	GetByOwner(ctx context.Context, ownerID string) (Configuration, error)
	GetByInboundNumber(ctx context.Context, number string) (Configuration, error)
	Upsert(ctx context.Context, c Configuration) (Configuration, error)
	// Modify stores fn's result in place of the owner's configuration. No other
	// write for the owner can land between the read and the write.
	Modify(ctx context.Context, ownerID string, fn ModifyFunc) (Configuration, error)
	Delete(ctx context.Context, ownerID string) error
	List(ctx context.Context) ([]Configuration, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// ModifyFunc builds the next configuration from the stored one, nil when the owner has none.
type ModifyFunc func(current *Configuration) (Configuration, error)

const pgUniqueViolation = "23505"

// PostgresRepo stores configurations in telephony_settings.
// SIP passwords are sealed with the Cipher before they reach the database.
type PostgresRepo struct {
	db     *sql.DB
	cipher *Cipher
}

func NewPostgresRepo(db *sql.DB, c *Cipher) *PostgresRepo {
	return &PostgresRepo{db: db, cipher: c}
}

const selectColumns = `
SELECT id, owner_id, inbound_number, call_action, phone_number, sip_endpoint, sip_username,
       sip_password_enc, sms_forwarding_enabled, sms_forward_to, greeting, created_at, updated_at
FROM telephony_settings
`

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *PostgresRepo) GetByOwner(ctx context.Context, ownerID string) (Configuration, error) {
	return r.getOne(ctx, r.db, selectColumns+`WHERE owner_id = $1`, ownerID)
}

func (r *PostgresRepo) GetByInboundNumber(ctx context.Context, number string) (Configuration, error) {
	if number == "" {
		return Configuration{}, ErrNotFound
	}
	return r.getOne(ctx, r.db, selectColumns+`WHERE inbound_number = $1`, number)
}

func (r *PostgresRepo) getOne(ctx context.Context, db queryer, q string, arg string) (Configuration, error) {
	c, err := r.scan(db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Configuration{}, ErrNotFound
		}
		return Configuration{}, err
	}
	return c, nil
}

func (r *PostgresRepo) Upsert(ctx context.Context, c Configuration) (Configuration, error) {
	return r.upsert(ctx, r.db, c)
}

// Modify locks the owner's row with SELECT ... FOR UPDATE for the whole read-modify-write.
func (r *PostgresRepo) Modify(ctx context.Context, ownerID string, fn ModifyFunc) (Configuration, error) {
	var out Configuration
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var current *Configuration
		prev, err := r.getOne(ctx, tx, selectColumns+`WHERE owner_id = $1 FOR UPDATE`, ownerID)
		switch {
		case err == nil:
			current = &prev
		case !errors.Is(err, ErrNotFound):
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		out, err = r.upsert(ctx, tx, next)
		return err
	})
	if err != nil {
		return Configuration{}, err
	}
	return out, nil
}

func (r *PostgresRepo) upsert(ctx context.Context, db queryer, c Configuration) (Configuration, error) {
	var (
		phone, endpoint, username sql.NullString
		sealed                    []byte
	)
	switch t := c.Target.(type) {
	case PhoneTarget:
		phone = nullString(t.Number)
	case SIPTarget:
		endpoint = nullString(t.Endpoint)
		username = nullString(t.Username)
		var err error
		if sealed, err = r.cipher.Seal(t.Password); err != nil {
			return Configuration{}, fmt.Errorf("settings: seal sip password: %w", err)
		}
	default:
		return Configuration{}, fmt.Errorf("settings: configuration has no call target")
	}

	const q = `
INSERT INTO telephony_settings (
  id, owner_id, inbound_number, call_action, phone_number, sip_endpoint, sip_username,
  sip_password_enc, sms_forwarding_enabled, sms_forward_to, greeting, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
ON CONFLICT (owner_id) DO UPDATE SET
  inbound_number = EXCLUDED.inbound_number,
  call_action = EXCLUDED.call_action,
  phone_number = EXCLUDED.phone_number,
  sip_endpoint = EXCLUDED.sip_endpoint,
  sip_username = EXCLUDED.sip_username,
  sip_password_enc = EXCLUDED.sip_password_enc,
  sms_forwarding_enabled = EXCLUDED.sms_forwarding_enabled,
  sms_forward_to = EXCLUDED.sms_forward_to,
  greeting = EXCLUDED.greeting,
  updated_at = EXCLUDED.updated_at
RETURNING id, created_at, updated_at
`
	if err := db.QueryRowContext(ctx, q,
		c.ID,
		c.OwnerID,
		nullString(c.InboundNumber),
		string(c.CallAction()),
		phone,
		endpoint,
		username,
		sealed,
		c.SMSForwardingEnabled,
		nullString(c.SMSForwardTo),
		nullString(c.Greeting),
		c.UpdatedAt,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Configuration{}, ErrNumberTaken
		}
		return Configuration{}, err
	}
	return c, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM telephony_settings WHERE owner_id = $1`, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Configuration, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+`ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Configuration
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM telephony_settings`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepo) scan(row rowScanner) (Configuration, error) {
	var (
		c                                  Configuration
		inbound, phone, endpoint, username sql.NullString
		forwardTo, greeting                sql.NullString
		action                             string
		sealed                             []byte
		createdAt, updatedAt               time.Time
	)
	if err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&inbound,
		&action,
		&phone,
		&endpoint,
		&username,
		&sealed,
		&c.SMSForwardingEnabled,
		&forwardTo,
		&greeting,
		&createdAt,
		&updatedAt,
	); err != nil {
		return Configuration{}, err
	}
	c.InboundNumber = inbound.String
	c.SMSForwardTo = forwardTo.String
	c.Greeting = greeting.String
	c.CreatedAt = createdAt
	c.UpdatedAt = updatedAt

	switch CallAction(action) {
	case CallActionDialSIP:
		password, err := r.cipher.Open(sealed)
		if err != nil {
			return Configuration{}, err
		}
		c.Target = SIPTarget{Endpoint: endpoint.String, Username: username.String, Password: password}
	default:
		c.Target = PhoneTarget{Number: phone.String}
	}
	return c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
