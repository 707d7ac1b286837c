package listwarden

import "testing"

func testList() *List {
	return &List{
		ID:      "chat",
		Name:    "Chat",
		Address: "chat@example.com",
	}
}

func TestListAddressHelpers(t *testing.T) {
	l := testList()

	if got := l.LocalPart(); got != "chat" {
		t.Errorf("LocalPart() = %q", got)
	}
	if got := l.Domain(); got != "example.com" {
		t.Errorf("Domain() = %q", got)
	}
	if got := l.ListIDHeader(); got != "<chat.example.com>" {
		t.Errorf("ListIDHeader() = %q", got)
	}
	if got := l.SubjectTag(); got != "[chat]" {
		t.Errorf("SubjectTag() = %q", got)
	}
	if got := l.SubscriptionMailto(); got != "chat+subscribe@example.com" {
		t.Errorf("SubscriptionMailto() = %q", got)
	}
	if got := l.UnsubscriptionMailto(); got != "chat+unsubscribe@example.com" {
		t.Errorf("UnsubscriptionMailto() = %q", got)
	}
}

func TestListOwnerMailtoDefaultsAndCustomLocalPart(t *testing.T) {
	l := testList()
	if got := l.OwnerMailto(); got != "chat+owner@example.com" {
		t.Errorf("default OwnerMailto() = %q", got)
	}

	l.OwnerLocalPart = "admins" // missing leading "+" is normalized
	if got := l.OwnerMailto(); got != "chat+admins@example.com" {
		t.Errorf("custom OwnerMailto() = %q", got)
	}
}

func TestListRequestLocalDefaultsAndCustom(t *testing.T) {
	l := testList()
	if got := l.RequestLocal(); got != "+request" {
		t.Errorf("default RequestLocal() = %q", got)
	}

	l.RequestLocalPart = "+ctl"
	if got := l.RequestLocal(); got != "+ctl" {
		t.Errorf("custom RequestLocal() = %q", got)
	}
}
