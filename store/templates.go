package store

import (
	"context"
	"database/sql"

	"github.com/listwarden/listwarden"
)

const templateColumns = `pk, name, list, subject, headers_json, body`

func scanTemplate(row *sql.Row) (*listwarden.Template, error) {
	t := &listwarden.Template{}
	err := row.Scan(&t.PK, &t.Name, &t.List, &t.Subject, &t.HeadersJSON, &t.Body)
	if err == sql.ErrNoRows {
		return nil, listwarden.NotFound("template")
	}
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "reading template")
	}
	return t, nil
}

// GetTemplate looks up exactly (listPK, name); it does not walk the
// list-specific -> global -> built-in fallback chain, which is
// LookupTemplate's job.
func (s *Store) GetTemplate(ctx context.Context, listPK *int64, name string) (*listwarden.Template, error) {
	if listPK == nil {
		row := s.q.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE name = ? AND list IS NULL`, name)
		return scanTemplate(row)
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE name = ? AND list = ?`, name, *listPK)
	return scanTemplate(row)
}

// SetTemplate upserts by hand rather than via ON CONFLICT (name, list):
// SQLite's UNIQUE constraint never considers two NULLs equal, so two
// global (list IS NULL) templates of the same name would never
// conflict and SetTemplate would silently duplicate instead of
// replacing one.
func (s *Store) SetTemplate(ctx context.Context, t *listwarden.Template) error {
	var (
		res sql.Result
		err error
	)
	if t.List == nil {
		res, err = s.q.ExecContext(ctx, `
			UPDATE templates SET subject = ?, headers_json = ?, body = ?
			WHERE name = ? AND list IS NULL`,
			t.Subject, t.HeadersJSON, t.Body, t.Name)
	} else {
		res, err = s.q.ExecContext(ctx, `
			UPDATE templates SET subject = ?, headers_json = ?, body = ?
			WHERE name = ? AND list = ?`,
			t.Subject, t.HeadersJSON, t.Body, t.Name, *t.List)
	}
	if err != nil {
		return listwarden.WrapIntegrity(err, "updating template")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO templates (name, list, subject, headers_json, body)
		VALUES (?, ?, ?, ?, ?)`,
		t.Name, t.List, t.Subject, t.HeadersJSON, t.Body)
	if err != nil {
		return listwarden.WrapIntegrity(err, "creating template")
	}
	return nil
}
