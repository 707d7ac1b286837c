package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/listwarden/listwarden"
)

func (s *Store) GetPostPolicy(ctx context.Context, listPK int64) (*listwarden.PostPolicy, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT pk, list, announce_only, subscription_only, approval_needed, open, custom
		FROM post_policies WHERE list = ?`, listPK)
	p := &listwarden.PostPolicy{}
	err := row.Scan(&p.PK, &p.List, &p.AnnounceOnly, &p.SubscriptionOnly, &p.ApprovalNeeded, &p.Open, &p.Custom)
	if err == sql.ErrNoRows {
		return nil, listwarden.NotFound("post policy")
	}
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "reading post policy")
	}
	return p, nil
}

func (s *Store) SetPostPolicy(ctx context.Context, p *listwarden.PostPolicy) error {
	set := 0
	for _, flag := range []bool{p.AnnounceOnly, p.SubscriptionOnly, p.ApprovalNeeded, p.Open, p.Custom} {
		if flag {
			set++
		}
	}
	if set != 1 {
		return listwarden.Integrityf("post policy must set exactly one flag, got %d", set)
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO post_policies (list, announce_only, subscription_only, approval_needed, open, custom)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (list) DO UPDATE SET
			announce_only = excluded.announce_only,
			subscription_only = excluded.subscription_only,
			approval_needed = excluded.approval_needed,
			open = excluded.open,
			custom = excluded.custom`,
		p.List, p.AnnounceOnly, p.SubscriptionOnly, p.ApprovalNeeded, p.Open, p.Custom)
	if err != nil {
		return listwarden.WrapIntegrity(err, "setting post policy")
	}
	return nil
}

func (s *Store) GetSubscriptionPolicy(ctx context.Context, listPK int64) (*listwarden.SubscriptionPolicy, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT pk, list, send_confirmation, open, manual, request, custom
		FROM subscription_policies WHERE list = ?`, listPK)
	p := &listwarden.SubscriptionPolicy{}
	err := row.Scan(&p.PK, &p.List, &p.SendConfirmation, &p.Open, &p.Manual, &p.Request, &p.Custom)
	if err == sql.ErrNoRows {
		return nil, listwarden.NotFound("subscription policy")
	}
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "reading subscription policy")
	}
	return p, nil
}

func (s *Store) SetSubscriptionPolicy(ctx context.Context, p *listwarden.SubscriptionPolicy) error {
	if !p.Open && !p.Manual && !p.Request && !p.Custom {
		return listwarden.Integrityf("subscription policy must set at least one of open, manual, request, custom")
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO subscription_policies (list, send_confirmation, open, manual, request, custom)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (list) DO UPDATE SET
			send_confirmation = excluded.send_confirmation,
			open = excluded.open,
			manual = excluded.manual,
			request = excluded.request,
			custom = excluded.custom`,
		p.List, p.SendConfirmation, p.Open, p.Manual, p.Request, p.Custom)
	if err != nil {
		return listwarden.WrapIntegrity(err, "setting subscription policy")
	}
	return nil
}

func (s *Store) GetFilterSettings(ctx context.Context, listPK int64) (map[string]listwarden.FilterSetting, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT filter_name, value FROM filter_settings WHERE list = ?`, listPK)
	if err != nil {
		return nil, listwarden.WrapIntegrity(err, "reading filter settings")
	}
	defer rows.Close()

	out := map[string]listwarden.FilterSetting{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, listwarden.WrapIntegrity(err, "scanning filter setting")
		}
		out[name] = listwarden.FilterSetting{List: listPK, FilterName: name, Value: json.RawMessage(value)}
	}
	return out, rows.Err()
}

func (s *Store) SetFilterSetting(ctx context.Context, set listwarden.FilterSetting) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO filter_settings (list, filter_name, value) VALUES (?, ?, ?)
		ON CONFLICT (list, filter_name) DO UPDATE SET value = excluded.value`,
		set.List, set.FilterName, string(set.Value))
	if err != nil {
		return listwarden.WrapIntegrity(err, "setting filter setting")
	}
	return nil
}
