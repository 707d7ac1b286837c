package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/listwarden/listwarden"
)

func (s *Store) CreateList(ctx context.Context, l *listwarden.List) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO lists (id, name, address, description, archive_url, owner_local_part, request_local_part, verify, hidden, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.Address, l.Description, l.ArchiveURL, l.OwnerLocalPart, l.RequestLocalPart, l.Verify, l.Hidden, l.Enabled)
	if err != nil {
		return 0, listwarden.WrapIntegrity(err, "creating list")
	}
	pk, err := res.LastInsertId()
	if err != nil {
		return 0, listwarden.WrapIntegrity(err, "reading new list pk")
	}
	if err := s.setTopics(ctx, pk, l.Topics); err != nil {
		return 0, err
	}
	return pk, nil
}

func (s *Store) setTopics(ctx context.Context, listPK int64, topics []string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM list_topics WHERE list = ?`, listPK); err != nil {
		return listwarden.WrapIntegrity(err, "clearing topics")
	}
	for _, t := range topics {
		if _, err := s.q.ExecContext(ctx, `INSERT INTO list_topics (list, topic) VALUES (?, ?)`, listPK, t); err != nil {
			return listwarden.WrapIntegrity(err, "setting topic")
		}
	}
	return nil
}

func (s *Store) topicsOf(ctx context.Context, listPK int64) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT topic FROM list_topics WHERE list = ? ORDER BY topic`, listPK)
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "reading topics")
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, listwarden.WrapIntegrity(err, "scanning topic")
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (s *Store) scanList(ctx context.Context, row *sql.Row) (*listwarden.List, error) {
	l := &listwarden.List{}
	err := row.Scan(&l.PK, &l.ID, &l.Name, &l.Address, &l.Description, &l.ArchiveURL, &l.OwnerLocalPart, &l.RequestLocalPart, &l.Verify, &l.Hidden, &l.Enabled)
	if err == sql.ErrNoRows {
		return nil, listwarden.NotFound("list")
	}
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "reading list")
	}
	topics, err := s.topicsOf(ctx, l.PK)
	if err != nil {
		return nil, err
	}
	l.Topics = topics
	return l, nil
}

const listColumns = `pk, id, name, address, description, archive_url, owner_local_part, request_local_part, verify, hidden, enabled`

func (s *Store) GetList(ctx context.Context, pk int64) (*listwarden.List, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+listColumns+` FROM lists WHERE pk = ?`, pk)
	return s.scanList(ctx, row)
}

func (s *Store) GetListByID(ctx context.Context, id string) (*listwarden.List, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+listColumns+` FROM lists WHERE id = ?`, id)
	return s.scanList(ctx, row)
}

func (s *Store) GetListByAddress(ctx context.Context, address string) (*listwarden.List, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+listColumns+` FROM lists WHERE address = ? COLLATE NOCASE`, address)
	return s.scanList(ctx, row)
}

func (s *Store) ListLists(ctx context.Context) ([]*listwarden.List, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT pk FROM lists ORDER BY address`)
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "listing lists")
	}
	var pks []int64
	for rows.Next() {
		var pk int64
		if err := rows.Scan(&pk); err != nil {
			rows.Close()
			return nil, listwarden.WrapIntegrity(err, "scanning list pk")
		}
		pks = append(pks, pk)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, listwarden.WrapIntegrity(err, "listing lists")
	}

	out := make([]*listwarden.List, 0, len(pks))
	for _, pk := range pks {
		l, err := s.GetList(ctx, pk)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) UpdateList(ctx context.Context, pk int64, c listwarden.ListChange) error {
	sets := []string{}
	args := []interface{}{}

	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if c.Name.Valid {
		add("name", c.Name.Value)
	}
	if c.Description.Valid {
		add("description", c.Description.Value)
	}
	if c.ArchiveURL.Valid {
		add("archive_url", c.ArchiveURL.Value)
	}
	if c.OwnerLocalPart.Valid {
		add("owner_local_part", c.OwnerLocalPart.Value)
	}
	if c.RequestLocalPart.Valid {
		add("request_local_part", c.RequestLocalPart.Value)
	}
	if c.Verify.Valid {
		add("verify", c.Verify.Value)
	}
	if c.Hidden.Valid {
		add("hidden", c.Hidden.Value)
	}
	if c.Enabled.Valid {
		add("enabled", c.Enabled.Value)
	}

	if len(sets) > 0 {
		args = append(args, pk)
		_, err := s.q.ExecContext(ctx, `UPDATE lists SET `+strings.Join(sets, ", ")+` WHERE pk = ?`, args...)
		if err != nil {
			return listwarden.WrapIntegrity(err, "updating list")
		}
	}

	if c.Topics.Valid {
		if err := s.setTopics(ctx, pk, c.Topics.Value); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) DeleteList(ctx context.Context, pk int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM lists WHERE pk = ?`, pk)
	if err != nil {
		return listwarden.WrapIntegrity(err, "deleting list")
	}
	return nil
}

func (s *Store) ListOwners(ctx context.Context, listPK int64) ([]*listwarden.Owner, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT pk, list, address, name FROM owners WHERE list = ? ORDER BY address`, listPK)
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "listing owners")
	}
	defer rows.Close()

	var owners []*listwarden.Owner
	for rows.Next() {
		o := &listwarden.Owner{}
		if err := rows.Scan(&o.PK, &o.List, &o.Address, &o.Name); err != nil {
			return nil, listwarden.WrapIntegrity(err, "scanning owner")
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

func (s *Store) AddOwner(ctx context.Context, o *listwarden.Owner) (int64, error) {
	res, err := s.q.ExecContext(ctx, `INSERT INTO owners (list, address, name) VALUES (?, ?, ?)`, o.List, o.Address, o.Name)
	if err != nil {
		return 0, listwarden.WrapIntegrity(err, "adding owner")
	}
	return res.LastInsertId()
}

func (s *Store) RemoveOwner(ctx context.Context, listPK int64, address string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM owners WHERE list = ? AND address = ? COLLATE NOCASE`, listPK, address)
	if err != nil {
		return listwarden.WrapIntegrity(err, "removing owner")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return listwarden.NotFound("owner")
	}
	return nil
}
