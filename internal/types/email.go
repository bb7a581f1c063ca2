package types

import "strings"

// SenderIdentity defines the sender for outgoing emails.
type SenderIdentity struct {
	Name    string
	Address string
}

// String renders the identity as an RFC 5322 display address,
// e.g. "Garasiku Reminder <noreply@garasiku.id>".
func (s SenderIdentity) String() string {
	if s.Name == "" {
		return s.Address
	}
	return s.Name + " <" + s.Address + ">"
}

// SendInput is the provider-neutral contract for one pre-rendered email.
// A digest goes to every address of a recipient group in a single message.
type SendInput struct {
	To          []string
	From        SenderIdentity
	Subject     string
	BodyHTML    string
	ReferenceID string
}

// RecipientList joins the recipients for logging and provider headers.
func (in SendInput) RecipientList() string {
	return strings.Join(in.To, ", ")
}
