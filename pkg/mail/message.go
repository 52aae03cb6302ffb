// Package mail composes and delivers form mails.
package mail

import (
	"fmt"
	"mime"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/formmailer/formmailer/pkg/policy"
	"github.com/jhillyerd/enmime/v2"
)

// NoSubject replaces an empty subject, which enmime refuses to build.
const NoSubject = "(no subject)"

// Attachment is a file attached to a message. Name is the file name shown to the recipient and
// defaults to the base name of Path.
type Attachment struct {
	Path string
	Name string
}

// Message is an outgoing mail.
type Message struct {
	From        policy.Origin
	To          []string
	CC          []string
	BCC         []string
	ReplyTo     string
	Subject     string
	Body        string
	HTML        bool
	Attachments []Attachment
	Date        time.Time
}

// Recipients returns every envelope recipient.
func (m *Message) Recipients() []string {
	all := make([]string, 0, len(m.To)+len(m.CC)+len(m.BCC))
	all = append(all, m.To...)
	all = append(all, m.CC...)
	return append(all, m.BCC...)
}

func addrs(list []string) []mail.Address {
	out := make([]mail.Address, 0, len(list))
	for _, a := range list {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, mail.Address{Address: a})
		}
	}
	return out
}

// Builder converts msg into an enmime MailBuilder.
func Builder(msg *Message) (enmime.MailBuilder, error) {
	subject := msg.Subject
	if strings.TrimSpace(subject) == "" {
		subject = NoSubject
	}
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}
	b := enmime.Builder().
		From(msg.From.Name, msg.From.Address.Address).
		ToAddrs(addrs(msg.To)).
		CCAddrs(addrs(msg.CC)).
		BCCAddrs(addrs(msg.BCC)).
		Subject(subject).
		Date(date)
	if msg.ReplyTo != "" {
		b = b.ReplyTo("", msg.ReplyTo)
	}
	if msg.HTML {
		b = b.HTML([]byte(msg.Body))
	} else {
		b = b.Text([]byte(msg.Body))
	}
	for _, a := range msg.Attachments {
		content, err := os.ReadFile(a.Path)
		if err != nil {
			return b, fmt.Errorf("attachment %q: %w", a.Path, err)
		}
		name := a.Name
		if name == "" {
			name = filepath.Base(a.Path)
		}
		ctype := mime.TypeByExtension(filepath.Ext(name))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		b = b.AddAttachment(content, ctype, name)
	}
	return b, nil
}
