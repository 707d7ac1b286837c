package store

import (
	"context"
	"database/sql"

	"github.com/listwarden/listwarden"
)

const postColumns = `pk, list, envelope_from, address, message_id, message, timestamp, datetime, month_year`

func scanPost(row *sql.Row) (*listwarden.Post, error) {
	p := &listwarden.Post{}
	err := row.Scan(&p.PK, &p.List, &p.EnvelopeFrom, &p.Address, &p.MessageID, &p.Message, &p.Timestamp, &p.Datetime, &p.MonthYear)
	if err == sql.ErrNoRows {
		return nil, listwarden.NotFound("post")
	}
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "reading post")
	}
	return p, nil
}

// InsertPost is idempotent on (list, message_id): redelivery of an
// already-archived message is a no-op rather than an error, since SMTP
// and sendmail retries can resubmit a message the queue already
// accepted (spec.md §8).
func (s *Store) InsertPost(ctx context.Context, p *listwarden.Post) (int64, bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO posts (list, envelope_from, address, message_id, message, timestamp, datetime, month_year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (list, message_id) DO NOTHING`,
		p.List, p.EnvelopeFrom, p.Address, p.MessageID, p.Message, p.Timestamp, p.Datetime, p.MonthYear)
	if err != nil {
		return 0, false, listwarden.WrapIntegrity(err, "inserting post")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		pk, err := res.LastInsertId()
		if err != nil {
			return 0, false, listwarden.WrapIntegrity(err, "reading new post pk")
		}
		return pk, true, nil
	}

	row := s.q.QueryRowContext(ctx, `SELECT pk FROM posts WHERE list = ? AND message_id = ?`, p.List, p.MessageID)
	var pk int64
	if err := row.Scan(&pk); err != nil {
		return 0, false, listwarden.WrapIntegrity(err, "reading existing post pk")
	}
	return pk, false, nil
}

func (s *Store) PostsOfList(ctx context.Context, listPK int64) ([]*listwarden.Post, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+postColumns+` FROM posts WHERE list = ? ORDER BY timestamp`, listPK)
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "listing posts")
	}
	defer rows.Close()

	var out []*listwarden.Post
	for rows.Next() {
		p := &listwarden.Post{}
		if err := rows.Scan(&p.PK, &p.List, &p.EnvelopeFrom, &p.Address, &p.MessageID, &p.Message, &p.Timestamp, &p.Datetime, &p.MonthYear); err != nil {
			return nil, listwarden.WrapIntegrity(err, "scanning post")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
