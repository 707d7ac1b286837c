package listwarden

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, bodyFmt string) string {
	t.Helper()
	dataPath := t.TempDir()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := fmt.Sprintf(bodyFmt, dataPath)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigShellCommand(t *testing.T) {
	path := writeConfig(t, `
db_path = "/var/lib/listwarden/db.sqlite3"
data_path = %q
administrators = ["root@example.com"]

[send_mail]
ShellCommand = "/usr/sbin/sendmail -t"
`)

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !c.IsAdministrator("root@example.com") {
		t.Fatal("expected root@example.com to be an administrator")
	}
	if c.IsAdministrator("nobody@example.com") {
		t.Fatal("did not expect nobody@example.com to be an administrator")
	}

	transport, err := c.Transport()
	if err != nil {
		t.Fatal(err)
	}
	if transport.ShellCommand != "/usr/sbin/sendmail -t" {
		t.Fatalf("got %+v", transport)
	}
}

func TestLoadConfigSMTP(t *testing.T) {
	path := writeConfig(t, `
db_path = "/var/lib/listwarden/db.sqlite3"
data_path = %q

[send_mail.Smtp]
hostname = "smtp.example.com"
port = 587
envelope_from = "bounce@example.com"

[send_mail.Smtp.auth]
tag = "Auto"
username = "listwarden"
password = "hunter2"
auth_type = "plain"

[send_mail.Smtp.security]
tag = "StartTLS"
`)

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	transport, err := c.Transport()
	if err != nil {
		t.Fatal(err)
	}
	if transport.SMTP == nil {
		t.Fatal("expected an SMTP transport")
	}
	if transport.SMTP.Hostname != "smtp.example.com" || transport.SMTP.Port != 587 {
		t.Fatalf("got %+v", transport.SMTP)
	}
	if transport.SMTP.Security != SecurityStartTLS {
		t.Fatalf("got security %v", transport.SMTP.Security)
	}
	if transport.SMTP.Auth == nil || transport.SMTP.Auth.Username != "listwarden" {
		t.Fatalf("got %+v", transport.SMTP.Auth)
	}
}

func TestLoadConfigRejectsMissingSendMail(t *testing.T) {
	path := writeConfig(t, `
db_path = "/var/lib/listwarden/db.sqlite3"
data_path = %q
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error when send_mail is missing")
	}
}

func TestLoadConfigRejectsEmptyAdministrator(t *testing.T) {
	path := writeConfig(t, `
db_path = "/var/lib/listwarden/db.sqlite3"
data_path = %q
administrators = [""]

[send_mail]
ShellCommand = "/usr/sbin/sendmail -t"
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error on an empty administrator address")
	}
}

func TestLoadConfigRejectsUnwritableDataPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
db_path = "/var/lib/listwarden/db.sqlite3"
data_path = "/nonexistent/path/listwarden-data"

[send_mail]
ShellCommand = "/usr/sbin/sendmail -t"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error when data_path is not writeable")
	}
}
