package test

import (
	"context"
	"errors"
	"sync"

	"github.com/formmailer/formmailer/pkg/mail"
	"github.com/formmailer/formmailer/pkg/upload"
)

// MailerStub records sent messages.
type MailerStub struct {
	mu   sync.Mutex
	sent []*mail.Message
	// Fail makes Send return an error.
	Fail bool
}

var _ mail.Mailer = &MailerStub{}

// Send records msg.
func (m *MailerStub) Send(ctx context.Context, msg *mail.Message) error {
	if m.Fail {
		return errors.New("connection refused")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns the recorded messages.
func (m *MailerStub) Sent() []*mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*mail.Message{}, m.sent...)
}

// InspectorStub reports a fixed mime type for every path.
type InspectorStub struct {
	Mime string
}

var _ upload.Inspector = InspectorStub{}

// Inspect implements upload.Inspector.
func (s InspectorStub) Inspect(path string) (upload.Info, error) {
	return upload.Info{Mime: s.Mime, Token: upload.TypeToken(s.Mime)}, nil
}
