package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"telephony-relay/pkg/utils"
)

// PostgresRepo stores events in webhook_events.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Insert(ctx context.Context, e Event) error {
	const q = `
INSERT INTO webhook_events (
  id, owner_id, type, from_number, to_number, content, call_sid, message_sid,
  status, payload, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`
	var payload any
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.OwnerID,
		string(e.Type),
		e.From,
		e.To,
		e.Content,
		nullString(e.CallSID),
		nullString(e.MessageSID),
		string(e.Status),
		payload,
		e.CreatedAt,
		e.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) TransitionReceived(ctx context.Context, ownerID, correlationID string, status Status, at time.Time) (int64, error) {
	const q = `
UPDATE webhook_events
SET status = $3, updated_at = $4
WHERE owner_id = $1
  AND (call_sid = $2 OR message_sid = $2)
  AND status = 'received'
`
	res, err := r.db.ExecContext(ctx, q, ownerID, correlationID, string(status), at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepo) List(ctx context.Context, ownerID string, f Filter) ([]Event, int64, error) {
	where, args := listWhere(ownerID, f)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhook_events WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, per := f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if per <= 0 {
		per = DefaultPerPage
	}
	q := fmt.Sprintf(`
SELECT id, owner_id, type, from_number, to_number, content, call_sid, message_sid,
       status, payload, created_at, updated_at
FROM webhook_events
WHERE %s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d
`, where, len(args)+1, len(args)+2)
	args = append(args, per, (page-1)*per)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var (
			e               Event
			typ, status     string
			callSID, msgSID sql.NullString
			payload         []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.OwnerID,
			&typ,
			&e.From,
			&e.To,
			&e.Content,
			&callSID,
			&msgSID,
			&status,
			&payload,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		e.Type = Type(typ)
		e.Status = Status(status)
		e.CallSID = callSID.String
		e.MessageSID = msgSID.String
		if len(payload) > 0 {
			e.Payload = payload
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func listWhere(ownerID string, f Filter) (string, []any) {
	clauses := []string{"owner_id = $1"}
	args := []any{ownerID}
	if f.Type != "" {
		args = append(args, string(f.Type))
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, utils.ContainsPattern(f.Search))
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(`(from_number ILIKE $%d ESCAPE '\' OR to_number ILIKE $%d ESCAPE '\' OR content ILIKE $%d ESCAPE '\')`, n, n, n))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *PostgresRepo) Count(ctx context.Context, ownerID string, f CountFilter) (int64, error) {
	clauses := []string{"owner_id = $1"}
	args := []any{ownerID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(f.Types) > 0 {
		ph := make([]string, 0, len(f.Types))
		for _, t := range f.Types {
			args = append(args, string(t))
			ph = append(ph, fmt.Sprintf("$%d", len(args)))
		}
		clauses = append(clauses, "type IN ("+strings.Join(ph, ", ")+")")
	}

	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhook_events WHERE `+strings.Join(clauses, " AND "), args...).Scan(&n)
	return n, err
}

func (r *PostgresRepo) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM webhook_events WHERE created_at < $1`, t)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
