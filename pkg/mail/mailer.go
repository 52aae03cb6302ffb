package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"path/filepath"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/google/uuid"
	"github.com/jhillyerd/enmime/v2"
	"github.com/rs/zerolog/log"
)

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// SenderMailer builds messages with enmime and hands them to an enmime.Sender.
type SenderMailer struct {
	Sender enmime.Sender
}

var _ Mailer = &SenderMailer{}

// Send implements Mailer.
func (m *SenderMailer) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.Recipients()) == 0 {
		return fmt.Errorf("no recipients")
	}
	b, err := Builder(msg)
	if err != nil {
		return err
	}
	return b.Send(m.Sender)
}

// NewSMTPSender returns an enmime sender relaying through addr, using PLAIN auth when username
// is set.
func NewSMTPSender(addr, username, password string) enmime.Sender {
	var auth smtp.Auth
	if username != "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	return enmime.NewSMTP(addr, auth)
}

// DirSender writes each message into Dir as an .eml file, for development and testing.
type DirSender struct {
	Dir string
}

var _ enmime.Sender = &DirSender{}

// Send implements enmime.Sender.
func (d *DirSender) Send(reversePath string, recipients []string, msg []byte) error {
	if err := os.MkdirAll(d.Dir, 0o750); err != nil {
		return err
	}
	path := filepath.Join(d.Dir, uuid.NewString()+".eml")
	if err := os.WriteFile(path, msg, 0o600); err != nil {
		return err
	}
	log.Debug().Str("module", "mail").Str("path", path).Str("from", reversePath).
		Strs("to", recipients).Msg("Wrote message to drop directory")
	return nil
}

// FromConfig creates the Mailer selected by the process configuration.
func FromConfig(c config.Mail) (Mailer, error) {
	switch c.Mode {
	case config.MailSMTP, "":
		if c.SMTPAddr == "" {
			return nil, fmt.Errorf("mail mode %q requires an SMTP address", config.MailSMTP)
		}
		return &SenderMailer{Sender: NewSMTPSender(c.SMTPAddr, c.Username, c.Password)}, nil
	case config.MailDir:
		if c.DropDir == "" {
			return nil, fmt.Errorf("mail mode %q requires a drop directory", config.MailDir)
		}
		return &SenderMailer{Sender: &DirSender{Dir: c.DropDir}}, nil
	}
	return nil, fmt.Errorf("unknown mail mode %q", c.Mode)
}
