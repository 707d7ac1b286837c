package listwarden_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flosch/pongo2/v6"

	"github.com/listwarden/listwarden"
	"github.com/listwarden/listwarden/store"
)

func openTestDB(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "render-test.sqlite3")
	s, err := store.Open(context.Background(), path, store.Trusted)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLookupTemplateFallsBackToBuiltin(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tmpl, err := listwarden.LookupTemplate(ctx, db, nil, "generic-help")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(tmpl.Body, "List-Id") {
		t.Fatalf("expected the built-in generic-help body, got %q", tmpl.Body)
	}
}

func TestLookupTemplatePrefersListSpecificOverGlobalOverBuiltin(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	listPK, err := db.CreateList(ctx, &listwarden.List{ID: "a", Name: "A", Address: "list_a@example.com", Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	if err := db.SetTemplate(ctx, &listwarden.Template{Name: "admin-notice", Subject: "Global", Body: "global body"}); err != nil {
		t.Fatal(err)
	}

	tmpl, err := listwarden.LookupTemplate(ctx, db, &listPK, "admin-notice")
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.Body != "global body" {
		t.Fatalf("expected global override, got %q", tmpl.Body)
	}

	if err := db.SetTemplate(ctx, &listwarden.Template{Name: "admin-notice", List: &listPK, Subject: "Specific", Body: "list-specific body"}); err != nil {
		t.Fatal(err)
	}

	tmpl, err = listwarden.LookupTemplate(ctx, db, &listPK, "admin-notice")
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.Body != "list-specific body" {
		t.Fatalf("expected list-specific override, got %q", tmpl.Body)
	}
}

func TestRenderTemplateProducesCRLFBody(t *testing.T) {
	l := &listwarden.List{ID: "chat", Name: "Chat", Address: "chat@example.com"}
	tmpl := &listwarden.Template{
		Name:    "generic-help",
		Subject: "Help for {{ list.Name }}",
		Body:    "line one\nline two\n",
	}

	out, err := listwarden.RenderTemplate(tmpl, pongo2.Context{"list": l})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "Subject: Help for Chat\r\n") {
		t.Fatalf("got %q", out)
	}
	if !strings.Contains(string(out), "line one\r\nline two\r\n") {
		t.Fatalf("expected CRLF body, got %q", out)
	}
}
