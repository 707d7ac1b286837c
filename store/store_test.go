package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/listwarden/listwarden"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listwarden-test.sqlite3")
	s, err := Open(context.Background(), path, Trusted)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestListCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pk, err := s.CreateList(ctx, &listwarden.List{
		ID:      "a",
		Name:    "A",
		Address: "list_a@example.com",
		Enabled: true,
		Topics:  []string{"general", "announce"},
	})
	if err != nil {
		t.Fatal(err)
	}

	l, err := s.GetListByAddress(ctx, "LIST_A@EXAMPLE.COM")
	if err != nil {
		t.Fatal(err)
	}
	if l.PK != pk || l.Name != "A" {
		t.Fatalf("got %+v", l)
	}
	if len(l.Topics) != 2 || l.Topics[0] != "announce" {
		t.Fatalf("topics = %v", l.Topics)
	}

	if err := s.UpdateList(ctx, pk, listwarden.ListChange{
		Name:   listwarden.Set("A renamed"),
		Topics: listwarden.Set([]string{"only-one"}),
	}); err != nil {
		t.Fatal(err)
	}

	l, err = s.GetList(ctx, pk)
	if err != nil {
		t.Fatal(err)
	}
	if l.Name != "A renamed" || len(l.Topics) != 1 || l.Topics[0] != "only-one" {
		t.Fatalf("got %+v", l)
	}

	if err := s.DeleteList(ctx, pk); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetList(ctx, pk); !errors.Is(err, listwarden.NotFound("list")) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubscriptionAndCandidate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	listPK, err := s.CreateList(ctx, &listwarden.List{ID: "a", Name: "A", Address: "list_a@example.com", Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	candPK, err := s.CreateCandidate(ctx, &listwarden.CandidateSubscription{
		List: listPK, Address: "claire@example.com", Name: "Claire",
	})
	if err != nil {
		t.Fatal(err)
	}

	sub, err := s.AcceptCandidate(ctx, candPK)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Address != "claire@example.com" || !sub.Enabled || !sub.Verified {
		t.Fatalf("got %+v", sub)
	}

	if _, err := s.AcceptCandidate(ctx, candPK); err == nil {
		t.Fatal("expected error accepting an already-accepted candidate")
	}

	subs, err := s.SubscriptionsOfList(ctx, listPK)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].PK != sub.PK {
		t.Fatalf("got %+v", subs)
	}

	if err := s.DeleteSubscription(ctx, listPK, "claire@example.com"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteSubscription(ctx, listPK, "claire@example.com"); !errors.Is(err, listwarden.NotFound("subscription")) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestPostInsertIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	listPK, err := s.CreateList(ctx, &listwarden.List{ID: "a", Name: "A", Address: "list_a@example.com", Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	post := &listwarden.Post{
		List: listPK, EnvelopeFrom: "chris@example.com", Address: "chris@example.com",
		MessageID: "msg-1@example.com", Message: []byte("hello"),
		Timestamp: 1000, Datetime: "2026-01-01T00:00:00Z", MonthYear: "2026-01",
	}

	pk1, inserted1, err := s.InsertPost(ctx, post)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted1 {
		t.Fatal("expected first insert to report inserted")
	}

	pk2, inserted2, err := s.InsertPost(ctx, post)
	if err != nil {
		t.Fatal(err)
	}
	if inserted2 {
		t.Fatal("expected redelivery to report not-inserted")
	}
	if pk1 != pk2 {
		t.Fatalf("expected same pk, got %d and %d", pk1, pk2)
	}

	posts, err := s.PostsOfList(ctx, listPK)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 archived post, got %d", len(posts))
	}
}

func TestQueueLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pk, err := s.Enqueue(ctx, &listwarden.QueueEntry{
		Queue: listwarden.Out, ToAddresses: "a@example.com", FromAddress: "list@example.com",
		Subject: "hi", Message: []byte("body"), Timestamp: 1, Datetime: "2026-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := s.ListQueue(ctx, listwarden.Out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].PK != pk {
		t.Fatalf("got %+v", entries)
	}

	if err := s.MoveToQueue(ctx, pk, listwarden.Out, listwarden.Deferred, "transport failure"); err != nil {
		t.Fatal(err)
	}

	entries, err = s.ListQueue(ctx, listwarden.Out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected out queue empty after move, got %d", len(entries))
	}

	drained, err := s.DrainQueue(ctx, listwarden.Deferred)
	if err != nil {
		t.Fatal(err)
	}
	if len(drained) != 1 || drained[0].Comment != "transport failure" {
		t.Fatalf("got %+v", drained)
	}

	if remaining, err := s.ListQueue(ctx, listwarden.Deferred); err != nil || len(remaining) != 0 {
		t.Fatalf("expected deferred queue empty after drain, got %v %v", remaining, err)
	}
}

func TestDeleteFromQueueChunks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		pk, err := s.Enqueue(ctx, &listwarden.QueueEntry{
			Queue: listwarden.Hold, Message: []byte("x"), Timestamp: int64(i), Datetime: "2026-01-01T00:00:00Z",
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, pk)
	}

	deleted, err := s.DeleteFromQueue(ctx, listwarden.Hold, ids)
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 5 {
		t.Fatalf("expected 5 deleted, got %d", len(deleted))
	}
	if remaining, err := s.ListQueue(ctx, listwarden.Hold); err != nil || len(remaining) != 0 {
		t.Fatalf("expected hold queue empty, got %v %v", remaining, err)
	}
}

func TestTemplateUpsertHandlesGlobalNull(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tmpl := &listwarden.Template{Name: "generic-help", Subject: "Help", Body: "v1"}
	if err := s.SetTemplate(ctx, tmpl); err != nil {
		t.Fatal(err)
	}
	if err := s.SetTemplate(ctx, &listwarden.Template{Name: "generic-help", Subject: "Help", Body: "v2"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetTemplate(ctx, nil, "generic-help")
	if err != nil {
		t.Fatal(err)
	}
	if got.Body != "v2" {
		t.Fatalf("expected upsert to replace body, got %q", got.Body)
	}
}

func TestPoliciesUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	listPK, err := s.CreateList(ctx, &listwarden.List{ID: "a", Name: "A", Address: "list_a@example.com", Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SetPostPolicy(ctx, &listwarden.PostPolicy{List: listPK, SubscriptionOnly: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPostPolicy(ctx, &listwarden.PostPolicy{List: listPK, Open: true}); err != nil {
		t.Fatal(err)
	}
	p, err := s.GetPostPolicy(ctx, listPK)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Open || p.SubscriptionOnly {
		t.Fatalf("expected second SetPostPolicy to replace the row, got %+v", p)
	}

	if err := s.SetFilterSetting(ctx, listwarden.FilterSetting{List: listPK, FilterName: "MimeReject", Value: []byte(`{"reject":["text/html"]}`)}); err != nil {
		t.Fatal(err)
	}
	settings, err := s.GetFilterSettings(ctx, listPK)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := settings["MimeReject"]; !ok {
		t.Fatalf("got %+v", settings)
	}
}

func TestNestedAtomicUsesSavepoint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Atomic(ctx, func(tx listwarden.DB) error {
		_, err := tx.CreateList(ctx, &listwarden.List{ID: "a", Name: "A", Address: "list_a@example.com", Enabled: true})
		if err != nil {
			return err
		}
		return tx.Atomic(ctx, func(tx2 listwarden.DB) error {
			_, err := tx2.CreateList(ctx, &listwarden.List{ID: "b", Name: "B", Address: "list_b@example.com", Enabled: true})
			return err
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	lists, err := s.ListLists(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != 2 {
		t.Fatalf("expected 2 lists, got %d", len(lists))
	}
}

func TestNestedAtomicRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx listwarden.DB) error {
		_, err := tx.CreateList(ctx, &listwarden.List{ID: "a", Name: "A", Address: "list_a@example.com", Enabled: true})
		if err != nil {
			return err
		}
		innerErr := tx.Atomic(ctx, func(tx2 listwarden.DB) error {
			if _, err := tx2.CreateList(ctx, &listwarden.List{ID: "b", Name: "B", Address: "list_b@example.com", Enabled: true}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(innerErr, boom) {
			t.Fatalf("expected boom, got %v", innerErr)
		}
		return nil // outer transaction still commits list "a"
	})
	if err != nil {
		t.Fatal(err)
	}

	lists, err := s.ListLists(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != 1 || lists[0].ID != "a" {
		t.Fatalf("expected only list a to survive the rolled-back savepoint, got %+v", lists)
	}
}

func TestOpenSetsUserVersionToLatestMigration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var version int
	row := s.root.QueryRowContext(ctx, `PRAGMA user_version`)
	if err := row.Scan(&version); err != nil {
		t.Fatal(err)
	}

	latest := migrations[len(migrations)-1].Version
	if version != latest {
		t.Fatalf("user_version = %d, want %d", version, latest)
	}
}
