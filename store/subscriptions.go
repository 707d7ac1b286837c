package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/listwarden/listwarden"
)

const subscriptionColumns = `pk, list, address, account, name, digest, enabled, verified, hide_address, receive_duplicates, receive_own_posts, receive_confirmation`

func scanSubscription(row *sql.Row) (*listwarden.Subscription, error) {
	sub := &listwarden.Subscription{}
	err := row.Scan(&sub.PK, &sub.List, &sub.Address, &sub.Account, &sub.Name, &sub.Digest, &sub.Enabled, &sub.Verified, &sub.HideAddress, &sub.ReceiveDuplicates, &sub.ReceiveOwnPosts, &sub.ReceiveConfirmation)
	if err == sql.ErrNoRows {
		return nil, listwarden.NotFound("subscription")
	}
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "reading subscription")
	}
	return sub, nil
}

func scanSubscriptionRows(rows *sql.Rows) (*listwarden.Subscription, error) {
	sub := &listwarden.Subscription{}
	err := rows.Scan(&sub.PK, &sub.List, &sub.Address, &sub.Account, &sub.Name, &sub.Digest, &sub.Enabled, &sub.Verified, &sub.HideAddress, &sub.ReceiveDuplicates, &sub.ReceiveOwnPosts, &sub.ReceiveConfirmation)
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "scanning subscription")
	}
	return sub, nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub *listwarden.Subscription) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO subscriptions (list, address, account, name, digest, enabled, verified, hide_address, receive_duplicates, receive_own_posts, receive_confirmation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.List, sub.Address, sub.Account, sub.Name, sub.Digest, sub.Enabled, sub.Verified, sub.HideAddress, sub.ReceiveDuplicates, sub.ReceiveOwnPosts, sub.ReceiveConfirmation)
	if err != nil {
		return 0, listwarden.WrapIntegrity(err, "creating subscription")
	}
	return res.LastInsertId()
}

func (s *Store) GetSubscription(ctx context.Context, listPK int64, address string) (*listwarden.Subscription, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE list = ? AND address = ? COLLATE NOCASE`, listPK, address)
	return scanSubscription(row)
}

func (s *Store) SubscriptionsOfList(ctx context.Context, listPK int64) ([]*listwarden.Subscription, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE list = ? ORDER BY address`, listPK)
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "listing subscriptions")
	}
	defer rows.Close()

	var out []*listwarden.Subscription
	for rows.Next() {
		sub, err := scanSubscriptionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Store) SubscriptionsOfAccount(ctx context.Context, accountPK int64) ([]*listwarden.Subscription, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE account = ? ORDER BY list`, accountPK)
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "listing subscriptions of account")
	}
	defer rows.Close()

	var out []*listwarden.Subscription
	for rows.Next() {
		sub, err := scanSubscriptionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Store) UpdateSubscription(ctx context.Context, pk int64, c listwarden.SubscriptionChange) error {
	sets := []string{}
	args := []interface{}{}

	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if c.Name.Valid {
		add("name", c.Name.Value)
	}
	if c.Digest.Valid {
		add("digest", c.Digest.Value)
	}
	if c.Enabled.Valid {
		add("enabled", c.Enabled.Value)
	}
	if c.Verified.Valid {
		add("verified", c.Verified.Value)
	}
	if c.HideAddress.Valid {
		add("hide_address", c.HideAddress.Value)
	}
	if c.ReceiveDuplicates.Valid {
		add("receive_duplicates", c.ReceiveDuplicates.Value)
	}
	if c.ReceiveOwnPosts.Valid {
		add("receive_own_posts", c.ReceiveOwnPosts.Value)
	}
	if c.ReceiveConfirmation.Valid {
		add("receive_confirmation", c.ReceiveConfirmation.Value)
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, pk)
	_, err := s.q.ExecContext(ctx, `UPDATE subscriptions SET `+strings.Join(sets, ", ")+` WHERE pk = ?`, args...)
	if err != nil {
		return listwarden.WrapIntegrity(err, "updating subscription")
	}
	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, listPK int64, address string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM subscriptions WHERE list = ? AND address = ? COLLATE NOCASE`, listPK, address)
	if err != nil {
		return listwarden.WrapIntegrity(err, "deleting subscription")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return listwarden.NotFound("subscription")
	}
	return nil
}

const candidateColumns = `pk, list, address, name, digest, hide_address, receive_duplicates, receive_own_posts, receive_confirmation, accepted`

func scanCandidate(row *sql.Row) (*listwarden.CandidateSubscription, error) {
	c := &listwarden.CandidateSubscription{}
	err := row.Scan(&c.PK, &c.List, &c.Address, &c.Name, &c.Digest, &c.HideAddress, &c.ReceiveDuplicates, &c.ReceiveOwnPosts, &c.ReceiveConfirmation, &c.Accepted)
	if err == sql.ErrNoRows {
		return nil, listwarden.NotFound("candidate subscription")
	}
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "reading candidate subscription")
	}
	return c, nil
}

func (s *Store) CreateCandidate(ctx context.Context, c *listwarden.CandidateSubscription) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO candidate_subscriptions (list, address, name, digest, hide_address, receive_duplicates, receive_own_posts, receive_confirmation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (list, address) DO UPDATE SET name = excluded.name`,
		c.List, c.Address, c.Name, c.Digest, c.HideAddress, c.ReceiveDuplicates, c.ReceiveOwnPosts, c.ReceiveConfirmation)
	if err != nil {
		return 0, listwarden.WrapIntegrity(err, "creating candidate subscription")
	}
	return res.LastInsertId()
}

func (s *Store) GetCandidate(ctx context.Context, listPK int64, address string) (*listwarden.CandidateSubscription, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidate_subscriptions WHERE list = ? AND address = ? COLLATE NOCASE`, listPK, address)
	return scanCandidate(row)
}

// AcceptCandidate promotes a candidate subscription to a full
// subscription and records the link, as a single savepoint rooted in
// whatever transaction Atomic is already running (spec.md §4.5).
func (s *Store) AcceptCandidate(ctx context.Context, candidatePK int64) (*listwarden.Subscription, error) {
	var result *listwarden.Subscription
	err := s.Atomic(ctx, func(tx listwarden.DB) error {
		inner := tx.(*Store)

		row := inner.q.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidate_subscriptions WHERE pk = ?`, candidatePK)
		cand, err := scanCandidate(row)
		if err != nil {
			return err
		}
		if cand.Accepted != nil {
			return listwarden.Integrityf("candidate subscription %d already accepted", candidatePK)
		}

		sub := &listwarden.Subscription{
			List:                cand.List,
			Address:             cand.Address,
			Name:                cand.Name,
			Digest:              cand.Digest,
			Enabled:             true,
			Verified:            true,
			HideAddress:         cand.HideAddress,
			ReceiveDuplicates:   cand.ReceiveDuplicates,
			ReceiveOwnPosts:     cand.ReceiveOwnPosts,
			ReceiveConfirmation: cand.ReceiveConfirmation,
		}
		subPK, err := inner.CreateSubscription(ctx, sub)
		if err != nil {
			return err
		}
		sub.PK = subPK

		if _, err := inner.q.ExecContext(ctx, `UPDATE candidate_subscriptions SET accepted = ? WHERE pk = ?`, subPK, candidatePK); err != nil {
			return listwarden.WrapIntegrity(err, "marking candidate subscription accepted")
		}

		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
