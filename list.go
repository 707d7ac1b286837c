package listwarden

import (
	"strings"

	"github.com/listwarden/listwarden/mailutil"
)

// addr parses l.Address. If the stored address does not parse, it
// returns an Addr whose Local is the whole address and whose Domain is
// empty.
func (l *List) addr() *mailutil.Addr {
	a, err := mailutil.ParseAddress(l.Address)
	if err != nil {
		return &mailutil.Addr{Local: l.Address}
	}
	return a
}

// LocalPart returns the local-part of l.Address, e.g. "foo-chat".
func (l *List) LocalPart() string {
	return l.addr().Local
}

// Domain returns the domain of l.Address, e.g. "example.com".
func (l *List) Domain() string {
	return l.addr().Domain
}

func (l *List) subaddress(local string) string {
	a := l.addr()
	return a.WithLocal(a.Local + local).RFC5322AddrSpec()
}

// SubscriptionMailto is the "list+subscribe@domain" address.
func (l *List) SubscriptionMailto() string {
	return l.subaddress("+subscribe")
}

// UnsubscriptionMailto is the "list+unsubscribe@domain" address.
func (l *List) UnsubscriptionMailto() string {
	return l.subaddress("+unsubscribe")
}

// OwnerMailto is "list"+l.OwnerLocalPart+"@domain", e.g. "list+owner@domain".
func (l *List) OwnerMailto() string {
	local := l.OwnerLocalPart
	if local == "" {
		local = "+owner"
	}
	if !strings.HasPrefix(local, "+") {
		local = "+" + local
	}
	return l.subaddress(local)
}

// RequestLocal returns the configured request local-part suffix, always
// "+"-prefixed, defaulting to "+request".
func (l *List) RequestLocal() string {
	local := l.RequestLocalPart
	if local == "" {
		local = "+request"
	}
	if !strings.HasPrefix(local, "+") {
		local = "+" + local
	}
	return local
}

// ListIDHeader is the value of the List-Id header: "<id.domain>".
func (l *List) ListIDHeader() string {
	return "<" + l.ID + "." + l.Domain() + ">"
}

// SubjectTag is the "[id]" prefix applied to accepted posts.
func (l *List) SubjectTag() string {
	return "[" + l.ID + "]"
}
