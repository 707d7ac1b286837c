package listwarden

import (
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/listwarden/listwarden/mailutil"
)

// Action is the outcome a filter chain run settles on.
type Action int

const (
	ActionHold Action = iota
	ActionAccept
	ActionReject
	ActionDefer
)

func (a Action) String() string {
	switch a {
	case ActionAccept:
		return "accept"
	case ActionReject:
		return "reject"
	case ActionDefer:
		return "defer"
	case ActionHold:
		return "hold"
	default:
		return "unknown"
	}
}

// PostEntry is a post-in-flight as it travels through the filter chain.
type PostEntry struct {
	MessageID string
	From      *mailutil.Addr
	Header    mail.Header
	Body      []byte
	Action    Action
	Reason    string // human-readable reject/defer reason, templated in the reply
}

// MailJobKind distinguishes the two outbound job kinds FinalizeRecipients
// schedules.
type MailJobKind int

const (
	JobSend MailJobKind = iota
	JobStoreDigest
)

// MailJob is a unit of outbound work scheduled by the filter chain.
type MailJob struct {
	Kind       MailJobKind
	Recipients []string
}

// ListContext carries everything a filter needs about the list a post is
// addressed to, plus the jobs filters schedule along the way.
type ListContext struct {
	List               *List
	PostPolicy         *PostPolicy
	SubscriptionPolicy *SubscriptionPolicy
	Owners             []*Owner
	Subscribers        []*Subscription
	Settings           map[string]FilterSetting
	ScheduledJobs      []MailJob
}

func (c *ListContext) isOwner(address string) bool {
	address = strings.ToLower(address)
	for _, o := range c.Owners {
		if strings.ToLower(o.Address) == address {
			return true
		}
	}
	return false
}

func (c *ListContext) subscriber(address string) *Subscription {
	address = strings.ToLower(address)
	for _, s := range c.Subscribers {
		if strings.ToLower(s.Address) == address {
			return s
		}
	}
	return nil
}

// Filter mutates a post-in-flight and its context. The bool return
// reports whether the chain should continue: a filter that wants to
// force termination (the post's Action is already Reject/Defer/Hold)
// returns false without needing an error type of its own, per the
// "Result<(post, ctx), ()>" shape of spec.md §9.
type Filter func(PostEntry, ListContext) (PostEntry, ListContext, bool)

// RunChain folds post and ctx through chain in order, stopping at the
// first filter that returns cont=false.
func RunChain(chain []Filter, post PostEntry, ctx ListContext) (PostEntry, ListContext) {
	for _, f := range chain {
		var cont bool
		post, ctx, cont = f(post, ctx)
		if !cont {
			break
		}
	}
	return post, ctx
}

// DefaultChain is the seven-filter pipeline of spec.md §4.7, in order.
func DefaultChain() []Filter {
	return []Filter{
		PostRightsCheck,
		MimeReject,
		FixCRLF,
		AddListHeaders,
		ArchivedAtLink,
		AddSubjectTagPrefix,
		FinalizeRecipients,
	}
}

// PostRightsCheck is filter 1.
func PostRightsCheck(post PostEntry, ctx ListContext) (PostEntry, ListContext, bool) {
	policy := ctx.PostPolicy
	if policy == nil {
		return post, ctx, true
	}

	from := ""
	if post.From != nil {
		from = post.From.RFC5322AddrSpec()
	}

	switch {
	case policy.AnnounceOnly && !ctx.isOwner(from):
		post.Action = ActionReject
		post.Reason = "You are not allowed to post on this list."
		return post, ctx, false
	case policy.SubscriptionOnly && ctx.subscriber(from) == nil:
		post.Action = ActionReject
		post.Reason = "Only subscriptions can post to this list."
		return post, ctx, false
	case policy.ApprovalNeeded && ctx.subscriber(from) == nil:
		post.Action = ActionDefer
		post.Reason = "Your posting has been deferred. Approval from the list's moderators is required before it is submitted."
		return post, ctx, false
	}

	return post, ctx, true
}

// MimeRejectSettings is the FilterSetting payload consulted by MimeReject.
type MimeRejectSettings struct {
	Enabled bool     `json:"enabled"`
	Reject  []string `json:"reject"`
}

func declaredContentTypes(header mail.Header, body []byte) []string {
	types := []string{}
	mediatype, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		return types
	}
	types = append(types, mediatype)

	if boundary, ok := params["boundary"]; ok && strings.HasPrefix(mediatype, "multipart/") {
		mr := multipart.NewReader(strings.NewReader(string(body)), boundary)
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			if pt, _, err := mime.ParseMediaType(part.Header.Get("Content-Type")); err == nil {
				types = append(types, pt)
			}
		}
	}

	return types
}

// MimeReject is filter 2. It is inert when no MimeRejectSettings exist
// for the list.
func MimeReject(post PostEntry, ctx ListContext) (PostEntry, ListContext, bool) {
	setting, ok := ctx.Settings["MimeRejectSettings"]
	if !ok {
		return post, ctx, true
	}

	var cfg MimeRejectSettings
	if err := json.Unmarshal(setting.Value, &cfg); err != nil || !cfg.Enabled {
		return post, ctx, true
	}

	rejected := make(map[string]bool, len(cfg.Reject))
	for _, t := range cfg.Reject {
		rejected[strings.ToLower(t)] = true
	}

	for _, t := range declaredContentTypes(post.Header, post.Body) {
		if rejected[strings.ToLower(t)] {
			post.Action = ActionReject
			post.Reason = fmt.Sprintf("messages of content type %s are not allowed on this list.", t)
			return post, ctx, false
		}
	}

	return post, ctx, true
}

// FixCRLF is filter 3. It is idempotent: FixCRLF(FixCRLF(b)) == FixCRLF(b).
func FixCRLF(post PostEntry, ctx ListContext) (PostEntry, ListContext, bool) {
	post.Body = fixCRLF(post.Body)
	return post, ctx, true
}

func fixCRLF(b []byte) []byte {
	trailingNewline := len(b) > 0 && (b[len(b)-1] == '\n')

	normalized := strings.ReplaceAll(string(b), "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	normalized = strings.TrimSuffix(normalized, "\n")

	fixed := strings.ReplaceAll(normalized, "\n", "\r\n")
	if trailingNewline || len(b) == 0 {
		fixed += "\r\n"
	}

	return []byte(fixed)
}

// AddListHeaders is filter 4. It does not duplicate headers it has
// already set, so re-applying the chain to an already-processed message
// is a no-op for this step.
func AddListHeaders(post PostEntry, ctx ListContext) (PostEntry, ListContext, bool) {
	l := ctx.List

	set := func(name, value string) {
		if post.Header.Get(name) != "" {
			return
		}
		if value == "" {
			return
		}
		post.Header[textproto.CanonicalMIMEHeaderKey(name)] = []string{mailutil.EncodeHeaderValue(value)}
	}

	if post.From != nil {
		set("Sender", post.From.RFC5322AddrSpec())
	}
	set("List-Id", l.ListIDHeader())
	set("List-Help", "<mailto:"+l.LocalPart()+"+help@"+l.Domain()+">")

	if ctx.PostPolicy != nil && ctx.PostPolicy.AnnounceOnly {
		set("List-Post", "NO")
	} else {
		set("List-Post", "<mailto:"+l.Address+">")
	}

	set("List-Unsubscribe", "<mailto:"+l.UnsubscriptionMailto()+">")
	set("List-Subscribe", "<mailto:"+l.SubscriptionMailto()+">")

	if l.ArchiveURL != "" {
		set("List-Archive", "<"+l.ArchiveURL+">")
	}

	return post, ctx, true
}

// ArchivedAtLinkSettings is the FilterSetting payload consulted by
// ArchivedAtLink.
type ArchivedAtLinkSettings struct {
	Template       string `json:"template"`
	PreserveCarets bool   `json:"preserve_carets"`
}

// ArchivedAtLink is filter 5.
func ArchivedAtLink(post PostEntry, ctx ListContext) (PostEntry, ListContext, bool) {
	setting, ok := ctx.Settings["ArchivedAtLinkSettings"]
	if !ok {
		return post, ctx, true
	}

	var cfg ArchivedAtLinkSettings
	if err := json.Unmarshal(setting.Value, &cfg); err != nil || cfg.Template == "" {
		return post, ctx, true
	}

	msgID := post.MessageID
	if !cfg.PreserveCarets {
		msgID = strings.Trim(msgID, "^")
	}
	msgID = url.QueryEscape(msgID)

	tpl, err := pongo2.FromString(cfg.Template)
	if err != nil {
		return post, ctx, true
	}
	rendered, err := tpl.Execute(pongo2.Context{"msg_id": msgID})
	if err != nil {
		return post, ctx, true
	}

	post.Header["Archived-At"] = []string{rendered}
	return post, ctx, true
}

// AddSubjectTagPrefixSettings is the FilterSetting payload consulted by
// AddSubjectTagPrefix.
type AddSubjectTagPrefixSettings struct {
	Disabled bool `json:"disabled"`
}

// AddSubjectTagPrefix is filter 6.
func AddSubjectTagPrefix(post PostEntry, ctx ListContext) (PostEntry, ListContext, bool) {
	if setting, ok := ctx.Settings["AddSubjectTagPrefixSettings"]; ok {
		var cfg AddSubjectTagPrefixSettings
		if err := json.Unmarshal(setting.Value, &cfg); err == nil && cfg.Disabled {
			return post, ctx, true
		}
	}

	tag := ctx.List.SubjectTag()
	subject := mailutil.TryMimeDecode(post.Header.Get("Subject"))

	if subject == "" {
		subject = tag + " (no subject)"
	} else if !strings.HasPrefix(subject, tag) {
		subject = tag + " " + subject
	}

	post.Header["Subject"] = []string{mailutil.EncodeHeaderValue(subject)}
	return post, ctx, true
}

// FinalizeRecipients is filter 7: it always accepts.
func FinalizeRecipients(post PostEntry, ctx ListContext) (PostEntry, ListContext, bool) {
	from := ""
	if post.From != nil {
		from = strings.ToLower(post.From.RFC5322AddrSpec())
	}

	var immediate, digest []string
	for _, s := range ctx.Subscribers {
		if !s.Enabled {
			continue
		}
		if strings.ToLower(s.Address) == from && !s.ReceiveOwnPosts {
			continue
		}
		if s.Digest {
			digest = append(digest, s.Address)
		} else {
			immediate = append(immediate, s.Address)
		}
	}

	if len(immediate) > 0 {
		ctx.ScheduledJobs = append(ctx.ScheduledJobs, MailJob{Kind: JobSend, Recipients: immediate})
	}
	if len(digest) > 0 {
		ctx.ScheduledJobs = append(ctx.ScheduledJobs, MailJob{Kind: JobStoreDigest, Recipients: digest})
	}

	post.Action = ActionAccept
	return post, ctx, true
}
