// Package event defines the payloads passed to extension listeners.
package event

import "time"

// Field is one submitted field, list valued fields carry several values.
type Field struct {
	Name   string
	Values []string
}

// Submission describes a form submission that completed the send step.
type Submission struct {
	Form       string
	Fields     []Field
	Recipients []string
	ReplyTo    string
	RemoteAddr string
	SentAt     time.Time
}

// Value returns the first value of the named field, or "".
func (s Submission) Value(name string) string {
	for _, f := range s.Fields {
		if f.Name == name && len(f.Values) > 0 {
			return f.Values[0]
		}
	}
	return ""
}

// OutboundMail describes a message about to be handed to the mail transport.
type OutboundMail struct {
	Form    string
	Kind    string // "admin" or "reply"
	To      []string
	From    string
	Subject string
	Body    string
}

// Mail kinds.
const (
	AdminMail = "admin"
	ReplyMail = "reply"
)

// MailVerdict is a listener's decision on an OutboundMail.  A nil verdict
// defers to the next listener.
type MailVerdict struct {
	Deny   bool
	Reason string
}
