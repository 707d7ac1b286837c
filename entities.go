package listwarden

import "encoding/json"

// Change models the "Option<T>" changeset field of spec.md §4.1: Valid
// false means "leave alone", Valid true means "set to Value".
type Change[T any] struct {
	Valid bool
	Value T
}

// Set returns a Change that updates the field to v.
func Set[T any](v T) Change[T] {
	return Change[T]{Valid: true, Value: v}
}

// Leave returns a Change that leaves the field untouched.
func Leave[T any]() Change[T] {
	return Change[T]{}
}

// List is a MailingList (spec.md §3).
type List struct {
	PK               int64
	ID               string // unique, used in List-Id and the subject tag
	Name             string
	Address          string // RFC5321 address
	Description      string
	ArchiveURL       string
	OwnerLocalPart   string // default "+owner"
	RequestLocalPart string // default "+request"
	Verify           bool
	Hidden           bool
	Enabled          bool
	Topics           []string
}

// ListChange is the changeset shape for UpdateList.
type ListChange struct {
	Name             Change[string]
	Description      Change[string]
	ArchiveURL       Change[string]
	OwnerLocalPart   Change[string]
	RequestLocalPart Change[string]
	Verify           Change[bool]
	Hidden           Change[bool]
	Enabled          Change[bool]
	Topics           Change[[]string]
}

// Account links zero or more subscriptions across lists by address.
type Account struct {
	PK        int64
	Name      string
	Address   string // unique
	PublicKey string
	Password  string // opaque: bcrypt hash or an SSH public key fingerprint
	Enabled   bool
}

type AccountChange struct {
	Name      Change[string]
	PublicKey Change[string]
	Password  Change[string]
	Enabled   Change[bool]
}

// Subscription is a ListSubscription.
type Subscription struct {
	PK                  int64
	List                int64
	Address             string
	Account             *int64 // nullable FK
	Name                string
	Digest              bool
	Enabled             bool
	Verified            bool
	HideAddress         bool
	ReceiveDuplicates   bool
	ReceiveOwnPosts     bool
	ReceiveConfirmation bool
}

type SubscriptionChange struct {
	Name                Change[string]
	Digest              Change[bool]
	Enabled             Change[bool]
	Verified            Change[bool]
	HideAddress         Change[bool]
	ReceiveDuplicates   Change[bool]
	ReceiveOwnPosts     Change[bool]
	ReceiveConfirmation Change[bool]
}

// CandidateSubscription is a pending subscription awaiting owner approval.
type CandidateSubscription struct {
	PK                  int64
	List                int64
	Address             string
	Name                string
	Digest              bool
	HideAddress         bool
	ReceiveDuplicates   bool
	ReceiveOwnPosts     bool
	ReceiveConfirmation bool
	Accepted            *int64 // Subscription.PK once accepted
}

// Owner is a ListOwner.
type Owner struct {
	PK      int64
	List    int64
	Address string
	Name    string
}

// PostPolicy governs who may post to a list. Exactly one of the five
// flags is true (enforced at creation, spec.md §3).
type PostPolicy struct {
	PK               int64
	List             int64 // unique
	AnnounceOnly     bool
	SubscriptionOnly bool
	ApprovalNeeded   bool
	Open             bool
	Custom           bool
}

// SubscriptionPolicy governs how a list accepts new subscriptions. At
// least one of Open, Manual, Request, Custom is true.
type SubscriptionPolicy struct {
	PK               int64
	List             int64 // unique
	SendConfirmation bool
	Open             bool
	Manual           bool
	Request          bool
	Custom           bool
}

// Post is an archived, accepted list post.
type Post struct {
	PK           int64
	List         int64
	EnvelopeFrom string
	Address      string
	MessageID    string // carets stripped
	Message      []byte // full RFC5322 bytes
	Timestamp    int64
	Datetime     string // RFC3339
	MonthYear    string // "YYYY-MM"
}

// QueueName is one of the six named FIFOs (spec.md §4.2).
type QueueName string

const (
	Maildrop     QueueName = "maildrop"
	Hold         QueueName = "hold"
	Deferred     QueueName = "deferred"
	Corrupt      QueueName = "corrupt"
	Out          QueueName = "out"
	ErrorQueue   QueueName = "error"
)

var AllQueues = []QueueName{Maildrop, Hold, Deferred, Corrupt, Out, ErrorQueue}

func (q QueueName) Valid() bool {
	for _, n := range AllQueues {
		if n == q {
			return true
		}
	}
	return false
}

// QueueEntry is an immutable row in one of the named queues.
type QueueEntry struct {
	PK          int64
	Queue       QueueName
	List        *int64
	Comment     string
	ToAddresses string
	FromAddress string
	Subject     string
	MessageID   string
	Message     []byte
	Timestamp   int64
	Datetime    string
}

// Template is a named message template, optionally overridden per list.
type Template struct {
	PK          int64
	Name        string
	List        *int64 // nil = global default
	Subject     string
	HeadersJSON string // json object of header name -> template string
	Body        string
}

// Headers decodes HeadersJSON into a map, preserving template syntax in
// the values.
func (t *Template) Headers() (map[string]string, error) {
	if t.HeadersJSON == "" {
		return map[string]string{}, nil
	}
	var h map[string]string
	if err := json.Unmarshal([]byte(t.HeadersJSON), &h); err != nil {
		return nil, WrapParse(err, "template headers_json")
	}
	return h, nil
}

// FilterSetting is a per-(list,filter) JSON settings blob.
type FilterSetting struct {
	List       int64
	FilterName string
	Value      json.RawMessage
}

// WellKnownTemplateNames are the names that must have a built-in default
// (spec.md §4.3 and §9).
var WellKnownTemplateNames = []string{
	"generic-failure",
	"generic-help",
	"subscription-confirmation",
	"unsubscription-confirmation",
	"subscription-request-notice-owner",
	"admin-notice",
}
