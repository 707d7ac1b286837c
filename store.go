package listwarden

import "context"

// DB is the interface the post processor, filter chain, request
// dispatcher and transport use to reach persistent state (spec.md §4.1-
// §4.5). The concrete implementation lives in package store and talks to
// an embedded SQLite database; DB is defined here, in the domain package,
// so callers never import the storage package directly.
//
// Atomic runs fn against a DB handle that is transactionally atomic: the
// outermost call opens an EXCLUSIVE transaction, nested calls open a
// SAVEPOINT rooted in it. fn's DB argument must be used for every
// operation inside fn that should be part of the same atomic unit.
type DB interface {
	Atomic(ctx context.Context, fn func(DB) error) error

	// lists
	CreateList(ctx context.Context, l *List) (int64, error)
	GetList(ctx context.Context, pk int64) (*List, error)
	GetListByID(ctx context.Context, id string) (*List, error)
	GetListByAddress(ctx context.Context, address string) (*List, error)
	ListLists(ctx context.Context) ([]*List, error)
	UpdateList(ctx context.Context, pk int64, c ListChange) error
	DeleteList(ctx context.Context, pk int64) error

	// accounts
	CreateAccount(ctx context.Context, a *Account) (int64, error)
	GetAccountByAddress(ctx context.Context, address string) (*Account, error)
	UpdateAccount(ctx context.Context, pk int64, c AccountChange) error
	UpsertAccountPassword(ctx context.Context, address, password string) error

	// owners
	ListOwners(ctx context.Context, listPK int64) ([]*Owner, error)
	AddOwner(ctx context.Context, o *Owner) (int64, error)
	RemoveOwner(ctx context.Context, listPK int64, address string) error

	// subscriptions
	CreateSubscription(ctx context.Context, s *Subscription) (int64, error)
	GetSubscription(ctx context.Context, listPK int64, address string) (*Subscription, error)
	SubscriptionsOfList(ctx context.Context, listPK int64) ([]*Subscription, error)
	SubscriptionsOfAccount(ctx context.Context, accountPK int64) ([]*Subscription, error)
	UpdateSubscription(ctx context.Context, pk int64, c SubscriptionChange) error
	DeleteSubscription(ctx context.Context, listPK int64, address string) error

	// candidate subscriptions
	CreateCandidate(ctx context.Context, c *CandidateSubscription) (int64, error)
	GetCandidate(ctx context.Context, listPK int64, address string) (*CandidateSubscription, error)
	AcceptCandidate(ctx context.Context, candidatePK int64) (*Subscription, error)

	// policies
	GetPostPolicy(ctx context.Context, listPK int64) (*PostPolicy, error)
	SetPostPolicy(ctx context.Context, p *PostPolicy) error
	GetSubscriptionPolicy(ctx context.Context, listPK int64) (*SubscriptionPolicy, error)
	SetSubscriptionPolicy(ctx context.Context, p *SubscriptionPolicy) error

	// filter settings
	GetFilterSettings(ctx context.Context, listPK int64) (map[string]FilterSetting, error)
	SetFilterSetting(ctx context.Context, s FilterSetting) error

	// posts
	InsertPost(ctx context.Context, p *Post) (pk int64, inserted bool, err error)
	PostsOfList(ctx context.Context, listPK int64) ([]*Post, error)

	// queue
	Enqueue(ctx context.Context, e *QueueEntry) (int64, error)
	ListQueue(ctx context.Context, q QueueName) ([]*QueueEntry, error)
	DeleteFromQueue(ctx context.Context, q QueueName, ids []int64) ([]*QueueEntry, error)
	DrainQueue(ctx context.Context, q QueueName) ([]*QueueEntry, error)
	MoveToQueue(ctx context.Context, pk int64, from, to QueueName, comment string) error

	// templates
	GetTemplate(ctx context.Context, listPK *int64, name string) (*Template, error)
	SetTemplate(ctx context.Context, t *Template) error
}
