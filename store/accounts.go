package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/listwarden/listwarden"
)

const accountColumns = `pk, name, address, public_key, password, enabled`

func scanAccount(row *sql.Row) (*listwarden.Account, error) {
	a := &listwarden.Account{}
	err := row.Scan(&a.PK, &a.Name, &a.Address, &a.PublicKey, &a.Password, &a.Enabled)
	if err == sql.ErrNoRows {
		return nil, listwarden.NotFound("account")
	}
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "reading account")
	}
	return a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *listwarden.Account) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO accounts (name, address, public_key, password, enabled)
		VALUES (?, ?, ?, ?, ?)`,
		a.Name, a.Address, a.PublicKey, a.Password, a.Enabled)
	if err != nil {
		return 0, listwarden.WrapIntegrity(err, "creating account")
	}
	return res.LastInsertId()
}

func (s *Store) GetAccountByAddress(ctx context.Context, address string) (*listwarden.Account, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE address = ? COLLATE NOCASE`, address)
	return scanAccount(row)
}

func (s *Store) UpdateAccount(ctx context.Context, pk int64, c listwarden.AccountChange) error {
	sets := []string{}
	args := []interface{}{}

	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if c.Name.Valid {
		add("name", c.Name.Value)
	}
	if c.PublicKey.Valid {
		add("public_key", c.PublicKey.Value)
	}
	if c.Password.Valid {
		add("password", c.Password.Value)
	}
	if c.Enabled.Valid {
		add("enabled", c.Enabled.Value)
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, pk)
	_, err := s.q.ExecContext(ctx, `UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE pk = ?`, args...)
	if err != nil {
		return listwarden.WrapIntegrity(err, "updating account")
	}
	return nil
}

// UpsertAccountPassword creates an enabled account on first use, per
// spec.md §4.9's ChangePassword request: any address may set a
// password for itself, account creation is implicit.
func (s *Store) UpsertAccountPassword(ctx context.Context, address, password string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE accounts SET password = ? WHERE address = ? COLLATE NOCASE`, password, address)
	if err != nil {
		return listwarden.WrapIntegrity(err, "updating account password")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO accounts (name, address, public_key, password, enabled)
		VALUES ('', ?, '', ?, 1)`, address, password)
	if err != nil {
		return listwarden.WrapIntegrity(err, "creating account for password change")
	}
	return nil
}
