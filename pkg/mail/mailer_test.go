package mail_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/mail"
	"github.com/formmailer/formmailer/pkg/policy"
	"github.com/jhillyerd/enmime/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	from       string
	recipients []string
	raw        []byte
}

func (c *captureSender) Send(reversePath string, recipients []string, msg []byte) error {
	c.from = reversePath
	c.recipients = recipients
	c.raw = msg
	return nil
}

func (c *captureSender) envelope(t *testing.T) *enmime.Envelope {
	t.Helper()
	env, err := enmime.ReadEnvelope(bytes.NewReader(c.raw))
	require.NoError(t, err)
	return env
}

func TestSenderMailerText(t *testing.T) {
	dir := t.TempDir()
	attach := filepath.Join(dir, "0a1b.jpg")
	require.NoError(t, os.WriteFile(attach, []byte("jpeg bytes"), 0o600))

	sender := &captureSender{}
	m := &mail.SenderMailer{Sender: sender}
	msg := &mail.Message{
		From:        policy.NewOrigin("admin@example.com", "Site Admin"),
		To:          []string{"admin@example.com"},
		CC:          []string{"cc@example.com"},
		BCC:         []string{"bcc@example.com"},
		ReplyTo:     "visitor@example.org",
		Subject:     "Inquiry",
		Body:        "name: Taro\n",
		Attachments: []mail.Attachment{{Path: attach, Name: "photo.jpg"}},
	}
	require.NoError(t, m.Send(context.Background(), msg))

	assert.Equal(t, "admin@example.com", sender.from)
	assert.ElementsMatch(t,
		[]string{"admin@example.com", "cc@example.com", "bcc@example.com"}, sender.recipients)

	env := sender.envelope(t)
	assert.Equal(t, "Inquiry", env.GetHeader("Subject"))
	assert.Contains(t, env.GetHeader("Reply-To"), "visitor@example.org")
	assert.Empty(t, env.GetHeader("Bcc"))
	assert.Equal(t, "name: Taro\n", env.Text)
	require.Len(t, env.Attachments, 1)
	assert.Equal(t, "photo.jpg", env.Attachments[0].FileName)
	assert.Equal(t, "jpeg bytes", string(env.Attachments[0].Content))
}

func TestSenderMailerHTMLAndDefaults(t *testing.T) {
	sender := &captureSender{}
	m := &mail.SenderMailer{Sender: sender}
	msg := &mail.Message{
		From: policy.NewOrigin("admin@example.com", ""),
		To:   []string{"admin@example.com"},
		Body: "<p>hello</p>",
		HTML: true,
	}
	require.NoError(t, m.Send(context.Background(), msg))
	env := sender.envelope(t)
	assert.Equal(t, mail.NoSubject, env.GetHeader("Subject"))
	assert.Contains(t, env.HTML, "<p>hello</p>")
}

func TestSenderMailerErrors(t *testing.T) {
	m := &mail.SenderMailer{Sender: &captureSender{}}
	err := m.Send(context.Background(), &mail.Message{From: policy.NewOrigin("a@example.com", "")})
	assert.Error(t, err)

	err = m.Send(context.Background(), &mail.Message{
		From:        policy.NewOrigin("a@example.com", ""),
		To:          []string{"a@example.com"},
		Attachments: []mail.Attachment{{Path: "/nonexistent/file"}},
	})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.Send(ctx, &mail.Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirSender(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drop")
	m, err := mail.FromConfig(config.Mail{Mode: config.MailDir, DropDir: dir})
	require.NoError(t, err)
	require.NoError(t, m.Send(context.Background(), &mail.Message{
		From:    policy.NewOrigin("a@example.com", ""),
		To:      []string{"b@example.com"},
		Subject: "Hi",
		Body:    "body",
	}))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".eml", filepath.Ext(entries[0].Name()))
}

func TestFromConfig(t *testing.T) {
	_, err := mail.FromConfig(config.Mail{Mode: "carrier-pigeon"})
	assert.Error(t, err)
	_, err = mail.FromConfig(config.Mail{Mode: config.MailDir})
	assert.Error(t, err)
	m, err := mail.FromConfig(config.Mail{Mode: config.MailSMTP, SMTPAddr: "localhost:25"})
	require.NoError(t, err)
	assert.IsType(t, &mail.SenderMailer{}, m)
}
