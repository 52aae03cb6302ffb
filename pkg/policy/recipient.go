package policy

import "strings"

// Recipients is the addressing of an admin mail.
type Recipients struct {
	To  []string
	CC  []string
	BCC []string
}

// Empty returns true if there is no primary recipient.
func (r Recipients) Empty() bool {
	return len(r.To) == 0
}

// Primary returns the first To address, which also serves as the sender of outgoing mail.
func (r Recipients) Primary() string {
	if len(r.To) == 0 {
		return ""
	}
	return r.To[0]
}

func (r Recipients) String() string {
	s := "to=" + strings.Join(r.To, ",")
	if len(r.CC) > 0 {
		s += " cc=" + strings.Join(r.CC, ",")
	}
	if len(r.BCC) > 0 {
		s += " bcc=" + strings.Join(r.BCC, ",")
	}
	return s
}
