package listwarden

import (
	"bytes"
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"golang.org/x/crypto/bcrypt"

	"github.com/listwarden/listwarden/mailutil"
	"github.com/listwarden/listwarden/util"
)

// Post is the C8 entry point (spec.md §4.8): one incoming message, handed
// to every list it is addressed to, inside a single EXCLUSIVE transaction.
// A sub-address request (+subscribe, +unsubscribe, +help, +request) is
// dispatched per §4.9 instead of entering the filter chain. A processing
// failure rolls back the attempt and, unless dryRun is set, is recorded
// as a single error-queue entry in its own transaction, then re-raised
// to the caller. A message that does not parse is recorded in the corrupt
// queue instead; an empty envelope, or a failure to open or commit the
// transaction itself, is returned without being recorded.
func Post(ctx context.Context, db DB, envelopeFrom string, envelopeTo []string, raw []byte, dryRun bool) error {
	if envelopeFrom == "" || len(envelopeTo) == 0 {
		return Parsef("empty envelope")
	}

	msg, parseErr := mailutil.ReadMessage(bytes.NewReader(raw))
	if parseErr != nil {
		return recordCorrupt(ctx, db, envelopeFrom, envelopeTo, raw, parseErr, dryRun)
	}

	from, err := mailutil.ParseAddress(envelopeFrom)
	if err != nil {
		from = &mailutil.Addr{Local: envelopeFrom}
	}

	var procErr error
	atomicErr := db.Atomic(ctx, func(tx DB) error {
		procErr = processMessage(ctx, tx, from, envelopeTo, msg)
		if procErr != nil || dryRun {
			return errDryRunRollback
		}
		return nil
	})
	if atomicErr != nil && !errors.Is(atomicErr, errDryRunRollback) {
		return atomicErr
	}

	if procErr != nil && !dryRun {
		return recordError(ctx, db, envelopeFrom, envelopeTo, raw, msg, procErr)
	}
	return procErr
}

func recordError(ctx context.Context, db DB, envelopeFrom string, envelopeTo []string, raw []byte, msg *mailutil.Message, cause error) error {
	now := time.Now()
	err := db.Atomic(ctx, func(tx DB) error {
		_, err := tx.Enqueue(ctx, &QueueEntry{
			Queue:       ErrorQueue,
			Comment:     cause.Error(),
			ToAddresses: strings.Join(envelopeTo, ","),
			FromAddress: envelopeFrom,
			Subject:     msg.Header.Get("Subject"),
			MessageID:   strings.Trim(msg.Header.Get("Message-Id"), "<>"),
			Message:     raw,
			Timestamp:   now.Unix(),
			Datetime:    now.UTC().Format(time.RFC3339),
		})
		return err
	})
	if err != nil {
		return err
	}
	return cause
}

func recordCorrupt(ctx context.Context, db DB, envelopeFrom string, envelopeTo []string, raw []byte, cause error, dryRun bool) error {
	wrapped := WrapParse(cause, "parsing message")
	if dryRun {
		return wrapped
	}

	now := time.Now()
	err := db.Atomic(ctx, func(tx DB) error {
		_, err := tx.Enqueue(ctx, &QueueEntry{
			Queue:       Corrupt,
			Comment:     wrapped.Error(),
			ToAddresses: strings.Join(envelopeTo, ","),
			FromAddress: envelopeFrom,
			Message:     raw,
			Timestamp:   now.Unix(),
			Datetime:    now.UTC().Format(time.RFC3339),
		})
		return err
	})
	if err != nil {
		return err
	}
	return wrapped
}

// processMessage resolves every envelope recipient to an enabled list and
// either dispatches a request or runs the post filter chain. A message
// addressed to no known, enabled list is an error.
func processMessage(ctx context.Context, tx DB, from *mailutil.Addr, envelopeTo []string, msg *mailutil.Message) error {
	matched := false

	for _, rcpt := range envelopeTo {
		addr, err := mailutil.ParseAddress(rcpt)
		if err != nil {
			continue
		}

		base, sub, hasSub := addr.SubAddress()
		baseAddr := addr.WithLocal(base).RFC5322AddrSpec()

		list, err := tx.GetListByAddress(ctx, baseAddr)
		if err != nil {
			if e, ok := err.(*Error); ok && e.Kind == KindNotFound {
				continue
			}
			return err
		}
		if !list.Enabled {
			continue
		}
		matched = true

		if hasSub {
			req := ParseRequest(sub, RequestEnvelope{
				Subject: msg.Header.Get("Subject"),
				Body:    string(msg.Body),
			})
			if err := dispatchRequest(ctx, tx, list, from, req, msg.Header.Get("Subject")); err != nil {
				return err
			}
			continue
		}

		if err := acceptPost(ctx, tx, list, from, msg); err != nil {
			return err
		}
	}

	if !matched {
		return NotFound("list for envelope recipients")
	}
	return nil
}

func acceptPost(ctx context.Context, tx DB, list *List, from *mailutil.Addr, msg *mailutil.Message) error {
	postPolicy, err := tx.GetPostPolicy(ctx, list.PK)
	if err != nil {
		return err
	}
	subscriptionPolicy, err := tx.GetSubscriptionPolicy(ctx, list.PK)
	if err != nil {
		return err
	}
	owners, err := tx.ListOwners(ctx, list.PK)
	if err != nil {
		return err
	}
	subscribers, err := tx.SubscriptionsOfList(ctx, list.PK)
	if err != nil {
		return err
	}
	settings, err := tx.GetFilterSettings(ctx, list.PK)
	if err != nil {
		return err
	}

	messageID := strings.Trim(msg.Header.Get("Message-Id"), "<>")
	if messageID == "" {
		generated, err := util.RandomString32()
		if err != nil {
			return WrapIntegrity(err, "generating message id")
		}
		messageID = generated + "@" + list.Domain()
	}

	post := PostEntry{
		MessageID: messageID,
		From:      from,
		Header:    cloneHeader(msg.Header),
		Body:      msg.Body,
	}
	listCtx := ListContext{
		List:               list,
		PostPolicy:         postPolicy,
		SubscriptionPolicy: subscriptionPolicy,
		Owners:             owners,
		Subscribers:        subscribers,
		Settings:           settings,
	}

	result, resultCtx := RunChain(DefaultChain(), post, listCtx)

	switch result.Action {
	case ActionAccept:
		return finalizeAccept(ctx, tx, list, messageID, result, resultCtx)
	case ActionReject:
		return replyFailure(ctx, tx, list, from, msg.Header.Get("Subject"), result.Reason)
	case ActionDefer:
		if err := replyFailure(ctx, tx, list, from, msg.Header.Get("Subject"), result.Reason); err != nil {
			return err
		}
		return enqueueRaw(ctx, tx, Deferred, list, from, msg, result.Reason)
	default: // ActionHold
		return enqueueRaw(ctx, tx, Hold, list, from, msg, result.Reason)
	}
}

func postTimestamp(header mail.Header) time.Time {
	if d, err := header.Date(); err == nil {
		return d
	}
	return time.Now()
}

func finalizeAccept(ctx context.Context, tx DB, list *List, messageID string, post PostEntry, lctx ListContext) error {
	raw, err := serializeMessage(post.Header, post.Body)
	if err != nil {
		return err
	}

	when := postTimestamp(post.Header)
	receivedAt := time.Now()

	p := &Post{
		List:      list.PK,
		Address:   list.Address,
		MessageID: strings.Trim(messageID, "^"),
		Message:   raw,
		Timestamp: when.Unix(),
		Datetime:  when.UTC().Format(time.RFC3339),
		MonthYear: when.UTC().Format("2006-01"),
	}
	if post.From != nil {
		p.EnvelopeFrom = post.From.RFC5322AddrSpec()
	}
	if _, _, err := tx.InsertPost(ctx, p); err != nil {
		return err
	}

	subject := post.Header.Get("Subject")
	for _, job := range lctx.ScheduledJobs {
		if job.Kind == JobStoreDigest {
			if _, err := tx.Enqueue(ctx, &QueueEntry{
				Queue:       Maildrop,
				List:        &list.PK,
				ToAddresses: strings.Join(job.Recipients, ","),
				FromAddress: list.Address,
				Subject:     subject,
				MessageID:   messageID,
				Message:     raw,
				Timestamp:   receivedAt.Unix(),
				Datetime:    receivedAt.UTC().Format(time.RFC3339),
			}); err != nil {
				return err
			}
			continue
		}

		for _, recipient := range job.Recipients {
			recipientRaw, err := serializeMessage(withTo(post.Header, recipient), post.Body)
			if err != nil {
				return err
			}
			if _, err := tx.Enqueue(ctx, &QueueEntry{
				Queue:       Out,
				List:        &list.PK,
				ToAddresses: recipient,
				FromAddress: list.Address,
				Subject:     subject,
				MessageID:   messageID,
				Message:     recipientRaw,
				Timestamp:   receivedAt.Unix(),
				Datetime:    receivedAt.UTC().Format(time.RFC3339),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// withTo returns a copy of h with its To header replaced by a single
// recipient, per spec.md §4.8 step 6.
func withTo(h mail.Header, to string) mail.Header {
	out := cloneHeader(h)
	out["To"] = []string{to}
	return out
}

func enqueueRaw(ctx context.Context, tx DB, queue QueueName, list *List, from *mailutil.Addr, msg *mailutil.Message, comment string) error {
	raw, err := serializeMessage(cloneHeader(msg.Header), msg.Body)
	if err != nil {
		return err
	}

	fromAddr := ""
	if from != nil {
		fromAddr = from.RFC5322AddrSpec()
	}

	now := time.Now()
	_, err = tx.Enqueue(ctx, &QueueEntry{
		Queue:       queue,
		List:        &list.PK,
		Comment:     comment,
		ToAddresses: list.Address,
		FromAddress: fromAddr,
		Subject:     msg.Header.Get("Subject"),
		MessageID:   strings.Trim(msg.Header.Get("Message-Id"), "<>"),
		Message:     raw,
		Timestamp:   now.Unix(),
		Datetime:    now.UTC().Format(time.RFC3339),
	})
	return err
}

func serializeMessage(header mail.Header, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := mailutil.WriteHeader(&buf, header); err != nil {
		return nil, err
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

func cloneHeader(h mail.Header) mail.Header {
	out := make(mail.Header, len(h))
	for k, v := range h {
		vv := make([]string, len(v))
		copy(vv, v)
		out[k] = vv
	}
	return out
}

// dispatchRequest implements §4.9: Subscribe, Unsubscribe, Help and
// ChangePassword are handled here; RetrieveMessages, RetrieveArchive,
// ChangeSetting and Other are deliberately unimplemented (spec.md §9).
func dispatchRequest(ctx context.Context, tx DB, list *List, from *mailutil.Addr, req Request, subject string) error {
	switch req.Kind {
	case ReqSubscribe:
		return handleSubscribe(ctx, tx, list, from, subject)
	case ReqUnsubscribe:
		return handleUnsubscribe(ctx, tx, list, from)
	case ReqHelp:
		return sendTemplateReply(ctx, tx, list, from, "generic-help", nil)
	case ReqChangePassword:
		return handleChangePassword(ctx, tx, list, from, req.Password)
	default:
		return ErrNotImplemented
	}
}

// handleSubscribe implements spec.md §4.9's Subscribe: already-subscribed
// addresses are rejected with generic-failure; otherwise candidate-vs-
// immediate subscription is gated on the list's PostPolicy.ApprovalNeeded,
// not its SubscriptionPolicy.
func handleSubscribe(ctx context.Context, tx DB, list *List, from *mailutil.Addr, subject string) error {
	address := from.RFC5322AddrSpec()

	existing, err := tx.GetSubscription(ctx, list.PK, address)
	if err != nil {
		if e, ok := err.(*Error); !ok || e.Kind != KindNotFound {
			return err
		}
	} else if existing != nil {
		return replyFailure(ctx, tx, list, from, subject, "You are already subscribed to this list.")
	}

	postPolicy, err := tx.GetPostPolicy(ctx, list.PK)
	if err != nil {
		return err
	}
	policy, err := tx.GetSubscriptionPolicy(ctx, list.PK)
	if err != nil {
		return err
	}

	if postPolicy.ApprovalNeeded {
		cand := &CandidateSubscription{
			List:    list.PK,
			Address: address,
			Name:    from.DisplayOrLocal(),
		}
		if _, err := tx.CreateCandidate(ctx, cand); err != nil {
			return err
		}

		owners, err := tx.ListOwners(ctx, list.PK)
		if err != nil {
			return err
		}
		for _, o := range owners {
			ownerAddr, err := mailutil.ParseAddress(o.Address)
			if err != nil {
				continue
			}
			if err := sendTemplateReply(ctx, tx, list, ownerAddr, "subscription-request-notice-owner", pongo2.Context{"address": address}); err != nil {
				return err
			}
		}
		return nil
	}

	sub := &Subscription{
		List:                list.PK,
		Address:             address,
		Name:                from.DisplayOrLocal(),
		Enabled:             true,
		Verified:            !list.Verify,
		ReceiveConfirmation: true,
	}
	if _, err := tx.CreateSubscription(ctx, sub); err != nil {
		return err
	}

	if policy.SendConfirmation {
		return sendTemplateReply(ctx, tx, list, from, "subscription-confirmation", pongo2.Context{"address": address})
	}
	return nil
}

func handleUnsubscribe(ctx context.Context, tx DB, list *List, from *mailutil.Addr) error {
	address := from.RFC5322AddrSpec()

	if err := tx.DeleteSubscription(ctx, list.PK, address); err != nil {
		if e, ok := err.(*Error); !ok || e.Kind != KindNotFound {
			return err
		}
	}

	return sendTemplateReply(ctx, tx, list, from, "unsubscription-confirmation", pongo2.Context{"address": address})
}

func handleChangePassword(ctx context.Context, tx DB, list *List, from *mailutil.Addr, password string) error {
	if strings.TrimSpace(password) == "" {
		return Parsef("password request is missing a \"password ...\" line")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return WrapIntegrity(err, "hashing password")
	}

	address := from.RFC5322AddrSpec()
	if err := tx.UpsertAccountPassword(ctx, address, string(hash)); err != nil {
		return err
	}

	return sendTemplateReply(ctx, tx, list, from, "admin-notice", pongo2.Context{"reason": "Your password has been changed."})
}

func replyFailure(ctx context.Context, tx DB, list *List, from *mailutil.Addr, subject, reason string) error {
	return sendTemplateReply(ctx, tx, list, from, "generic-failure", pongo2.Context{"subject": subject, "reason": reason})
}

func sendTemplateReply(ctx context.Context, tx DB, list *List, to *mailutil.Addr, templateName string, extra pongo2.Context) error {
	tmpl, err := LookupTemplate(ctx, tx, &list.PK, templateName)
	if err != nil {
		return err
	}
	rendered, err := RenderTemplate(tmpl, templateContext(list, extra))
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = tx.Enqueue(ctx, &QueueEntry{
		Queue:       Out,
		List:        &list.PK,
		ToAddresses: to.RFC5322AddrSpec(),
		FromAddress: list.Address,
		Subject:     subjectOf(rendered),
		Timestamp:   now.Unix(),
		Datetime:    now.UTC().Format(time.RFC3339),
		Message:     rendered,
	})
	return err
}

func subjectOf(raw []byte) string {
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	return mailutil.TryMimeDecode(m.Header.Get("Subject"))
}
