package store

import (
	"context"
	"database/sql"

	"github.com/listwarden/listwarden"
)

const queueColumns = `pk, queue, list, comment, to_addresses, from_address, subject, message_id, message, timestamp, datetime`

func scanQueueEntry(rows *sql.Rows) (*listwarden.QueueEntry, error) {
	e := &listwarden.QueueEntry{}
	err := rows.Scan(&e.PK, &e.Queue, &e.List, &e.Comment, &e.ToAddresses, &e.FromAddress, &e.Subject, &e.MessageID, &e.Message, &e.Timestamp, &e.Datetime)
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "scanning queue entry")
	}
	return e, nil
}

func (s *Store) Enqueue(ctx context.Context, e *listwarden.QueueEntry) (int64, error) {
	if !e.Queue.Valid() {
		return 0, listwarden.Integrityf("invalid queue name %q", e.Queue)
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO queue_entries (queue, list, comment, to_addresses, from_address, subject, message_id, message, timestamp, datetime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Queue, e.List, e.Comment, e.ToAddresses, e.FromAddress, e.Subject, e.MessageID, e.Message, e.Timestamp, e.Datetime)
	if err != nil {
		return 0, listwarden.WrapIntegrity(err, "enqueuing")
	}
	return res.LastInsertId()
}

func (s *Store) ListQueue(ctx context.Context, q listwarden.QueueName) ([]*listwarden.QueueEntry, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+queueColumns+` FROM queue_entries WHERE queue = ? ORDER BY pk`, q)
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "listing queue")
	}
	defer rows.Close()

	var out []*listwarden.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteFromQueue deletes and returns the entries named by ids, chunking
// the IN (...) clause to stay under SQLite's bound-variable limit
// (spec.md §5's fallback for bulk operations).
func (s *Store) DeleteFromQueue(ctx context.Context, q listwarden.QueueName, ids []int64) ([]*listwarden.QueueEntry, error) {
	var out []*listwarden.QueueEntry
	for _, group := range chunk(ids, 900) {
		args := append([]interface{}{string(q)}, int64Args(group)...)
		rows, err := s.q.QueryContext(ctx, `SELECT `+queueColumns+` FROM queue_entries WHERE queue = ? AND pk IN (`+placeholders(len(group))+`)`, args...)
		if err != nil {
			return nil, listwarden.WrapIntegrity(err, "reading queue entries for delete")
		}
		var batch []*listwarden.QueueEntry
		for rows.Next() {
			e, err := scanQueueEntry(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			batch = append(batch, e)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, listwarden.WrapIntegrity(err, "reading queue entries for delete")
		}
		rows.Close()

		if _, err := s.q.ExecContext(ctx, `DELETE FROM queue_entries WHERE queue = ? AND pk IN (`+placeholders(len(group))+`)`, args...); err != nil {
			return nil, listwarden.WrapIntegrity(err, "deleting queue entries")
		}
		out = append(out, batch...)
	}
	return out, nil
}

// DrainQueue empties q and returns everything it held. It opens no
// transaction of its own: called inside Atomic (as Flush does), the
// SELECT and DELETE below form one atomic unit, so a crash between them
// cannot lose or duplicate entries; called on a Store outside Atomic,
// they run as two separate statements.
func (s *Store) DrainQueue(ctx context.Context, q listwarden.QueueName) ([]*listwarden.QueueEntry, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+queueColumns+` FROM queue_entries WHERE queue = ? ORDER BY pk`, q)
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "reading queue for drain")
	}
	var out []*listwarden.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, listwarden.WrapIntegrity(err, "reading queue for drain")
	}
	rows.Close()

	if _, err := s.q.ExecContext(ctx, `DELETE FROM queue_entries WHERE queue = ?`, q); err != nil {
		return nil, listwarden.WrapIntegrity(err, "draining queue")
	}
	return out, nil
}

func (s *Store) MoveToQueue(ctx context.Context, pk int64, from, to listwarden.QueueName, comment string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE queue_entries SET queue = ?, comment = ? WHERE pk = ? AND queue = ?`, to, comment, pk, from)
	if err != nil {
		return listwarden.WrapIntegrity(err, "moving queue entry")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return listwarden.NotFound("queue entry")
	}
	return nil
}
