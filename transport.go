package listwarden

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
)

// Sender is the C9 transport abstraction: an SMTP session or a
// sub-process pipe, chosen by TransportConfig.
type Sender interface {
	Send(ctx context.Context, envelopeFrom string, envelopeTo []string, raw []byte) error
	String() string
}

// NewSender builds the configured Sender.
func NewSender(cfg TransportConfig) (Sender, error) {
	switch {
	case cfg.ShellCommand != "":
		return &ShellSender{Command: cfg.ShellCommand}, nil
	case cfg.SMTP != nil:
		return &SMTPSender{cfg: cfg.SMTP}, nil
	default:
		return nil, Configurationf("send_mail is missing")
	}
}

// ShellSender pipes the message to "sh -c <Command>", exporting
// TO_ADDRESS to the entry's recipient, per spec.md §4.10. It follows the
// teacher's mailutil.Sendmail shape, generalized from a fixed
// /usr/sbin/sendmail invocation to an arbitrary configured command, with
// a scoped stderr-draining goroutine so a child that fills its stderr
// pipe while we are still writing stdin cannot deadlock (spec.md §9).
type ShellSender struct {
	Command string
}

func (s *ShellSender) String() string { return "shell:" + s.Command }

func (s *ShellSender) Send(ctx context.Context, envelopeFrom string, envelopeTo []string, raw []byte) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", s.Command)
	cmd.Env = append(cmd.Environ(), "TO_ADDRESS="+strings.Join(envelopeTo, ","), "FROM_ADDRESS="+envelopeFrom)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return TransportFailf("opening stdin: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return TransportFailf("opening stderr: %v", err)
	}

	if err := cmd.Start(); err != nil {
		return TransportFailf("starting %q: %v", s.Command, err)
	}

	var stderrBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		io.Copy(&stderrBuf, stderr)
	}()

	_, writeErr := stdin.Write(raw)
	closeErr := stdin.Close()
	wg.Wait()

	waitErr := cmd.Wait()

	if writeErr != nil {
		return TransportFailf("writing message: %v", writeErr)
	}
	if closeErr != nil {
		return TransportFailf("closing stdin: %v", closeErr)
	}
	if waitErr != nil {
		return TransportFailf("%q exited: %v: %s", s.Command, waitErr, strings.TrimSpace(stderrBuf.String()))
	}

	return nil
}

// SMTPSender submits messages over an SMTP session, reusing a single
// connection across calls.
type SMTPSender struct {
	cfg    *SMTPConfig
	mu     sync.Mutex
	client *gosmtp.Client
}

func (s *SMTPSender) String() string {
	return fmt.Sprintf("smtp:%s:%d", s.cfg.Hostname, s.cfg.Port)
}

func (s *SMTPSender) addr() string {
	return s.cfg.Hostname + ":" + strconv.Itoa(s.cfg.Port)
}

func (s *SMTPSender) dial() (*gosmtp.Client, error) {
	var client *gosmtp.Client
	var err error

	switch s.cfg.Security {
	case SecurityTLS:
		client, err = gosmtp.DialTLS(s.addr(), &tls.Config{
			ServerName:         s.cfg.Hostname,
			InsecureSkipVerify: s.cfg.DangerAcceptInvalidCerts,
		})
	default:
		client, err = gosmtp.Dial(s.addr())
	}
	if err != nil {
		return nil, err
	}

	if s.cfg.Security == SecurityStartTLS {
		if err := client.StartTLS(&tls.Config{
			ServerName:         s.cfg.Hostname,
			InsecureSkipVerify: s.cfg.DangerAcceptInvalidCerts,
		}); err != nil {
			client.Close()
			return nil, err
		}
	}

	if s.cfg.Auth != nil {
		var authClient sasl.Client
		switch strings.ToLower(s.cfg.Auth.AuthType) {
		case "login":
			authClient = sasl.NewLoginClient(s.cfg.Auth.Username, s.cfg.Auth.Password)
		default:
			authClient = sasl.NewPlainClient("", s.cfg.Auth.Username, s.cfg.Auth.Password)
		}
		if err := client.Auth(authClient); err != nil {
			client.Close()
			if s.cfg.Auth.RequireAuth {
				return nil, err
			}
		}
	}

	return client, nil
}

func (s *SMTPSender) connection() (*gosmtp.Client, error) {
	if s.client != nil {
		if err := s.client.Noop(); err == nil {
			return s.client, nil
		}
		s.client.Close()
		s.client = nil
	}
	client, err := s.dial()
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

func (s *SMTPSender) Send(ctx context.Context, envelopeFrom string, envelopeTo []string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := envelopeFrom
	if from == "" {
		from = s.cfg.EnvelopeFrom
	}

	client, err := s.connection()
	if err != nil {
		return TransportFailf("connecting to %s: %v", s.addr(), err)
	}

	if err := client.Mail(from); err != nil {
		s.client = nil
		return TransportFailf("MAIL FROM: %v", err)
	}
	for _, to := range envelopeTo {
		if err := client.Rcpt(to); err != nil {
			s.client = nil
			return TransportFailf("RCPT TO %s: %v", to, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.client = nil
		return TransportFailf("DATA: %v", err)
	}
	if _, err := wc.Write(raw); err != nil {
		wc.Close()
		s.client = nil
		return TransportFailf("writing message: %v", err)
	}
	if err := wc.Close(); err != nil {
		s.client = nil
		return TransportFailf("finishing DATA: %v", err)
	}

	return nil
}

// FlushResult summarizes one Flush run.
type FlushResult struct {
	Sent   int
	Failed int
	Errors []error
}

var errDryRunRollback = errors.New("listwarden: dry run, rolling back")

// Flush is C9's flush(dry_run) entry point (spec.md §4.10). Under
// dry_run it only snapshots out ∪ deferred and never mutates the queues
// or sends anything that would have side effects beyond the sender's own
// Send call (callers should pass a non-mutating Sender, e.g. a dry-run
// logger, when exercising dry_run against a live transport).
func Flush(ctx context.Context, db DB, sender Sender, dryRun bool) (FlushResult, error) {
	var result FlushResult

	err := db.Atomic(ctx, func(tx DB) error {
		var entries []*QueueEntry

		if dryRun {
			out, err := tx.ListQueue(ctx, Out)
			if err != nil {
				return err
			}
			deferred, err := tx.ListQueue(ctx, Deferred)
			if err != nil {
				return err
			}
			entries = append(entries, out...)
			entries = append(entries, deferred...)
		} else {
			drained, err := tx.DrainQueue(ctx, Out)
			if err != nil {
				return err
			}
			entries = drained
		}

		for _, e := range entries {
			sendErr := sender.Send(ctx, e.FromAddress, splitAddresses(e.ToAddresses), e.Message)
			if sendErr == nil {
				result.Sent++
				continue
			}

			result.Failed++
			result.Errors = append(result.Errors, sendErr)

			if dryRun {
				continue
			}

			deferredEntry := &QueueEntry{
				Queue:       Deferred,
				List:        e.List,
				Comment:     sendErr.Error(),
				ToAddresses: e.ToAddresses,
				FromAddress: e.FromAddress,
				Subject:     e.Subject,
				MessageID:   e.MessageID,
				Message:     e.Message,
				Timestamp:   e.Timestamp,
				Datetime:    e.Datetime,
			}
			if _, err := tx.Enqueue(ctx, deferredEntry); err != nil {
				return err
			}
		}

		if dryRun {
			return errDryRunRollback
		}
		return nil
	})

	if err != nil && !errors.Is(err, errDryRunRollback) {
		return result, err
	}
	return result, nil
}

func splitAddresses(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
