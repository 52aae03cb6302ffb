package flow

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/formmailer/formmailer/pkg/extension/event"
	"github.com/formmailer/formmailer/pkg/form"
	"github.com/formmailer/formmailer/pkg/mail"
	"github.com/formmailer/formmailer/pkg/placeholder"
	"github.com/formmailer/formmailer/pkg/policy"
	"github.com/formmailer/formmailer/pkg/sanitize"
	"github.com/formmailer/formmailer/pkg/stringutil"
)

// Subjects used when the form configures none.
const (
	DefaultAdminSubject = "Mail sent from the website"
	DefaultReplySubject = "Automatic reply"
)

const sendDateLayout = "2006-01-02 15:04:05"

func (r *run) addressing() *policy.Addressing {
	return &policy.Addressing{Config: r.cfg}
}

// sendMail sends the admin mail and the optional auto reply. The returned event is nil when
// sending is disabled for the form.
func (r *run) sendMail() (*event.Submission, error) {
	if !r.cfg.SendMail {
		r.log.Debug().Msg("Mail sending disabled, skipping")
		return nil, nil
	}
	if r.req.Values.Len() == 0 {
		return nil, &TransportError{Reason: MsgNoFormData}
	}
	reply, err := r.addressing().ReplyAddress(r.req.Values)
	if err != nil {
		return nil, &ConfigError{Problems: []string{err.Error()}}
	}
	var dynamic map[string]string
	if v, ok := r.sess.Get(DynamicSendToKey); ok {
		dynamic, _ = v.(map[string]string)
	}
	rcpt := r.addressing().Recipients(r.req.Values, dynamic)
	if rcpt.Empty() {
		return nil, &TransportError{Reason: MsgNoAdminAddress}
	}
	attachments := r.stagedAttachments()

	if err := r.sendAdmin(rcpt, reply, attachments); err != nil {
		return nil, err
	}
	if err := r.sendReply(rcpt.Primary(), reply, attachments); err != nil {
		return nil, err
	}

	sent := &event.Submission{
		Form:       r.cfg.Name,
		Recipients: rcpt.To,
		ReplyTo:    reply,
		RemoteAddr: r.req.RemoteAddr,
		SentAt:     r.p.now(),
	}
	for _, name := range r.req.Values.Keys() {
		sent.Fields = append(sent.Fields, event.Field{
			Name:   name,
			Values: r.req.Values.Value(name).Strings(),
		})
	}
	return sent, nil
}

func (r *run) sendAdmin(rcpt policy.Recipients, reply string, attachments []mail.Attachment) error {
	tmpl, err := r.load(r.cfg.TmplMailAdmin)
	if err != nil {
		return err
	}
	admin := rcpt.Primary()
	msg := &mail.Message{
		From:        policy.NewOrigin(admin, r.header(r.cfg.AdminName)),
		To:          rcpt.To,
		CC:          rcpt.CC,
		BCC:         rcpt.BCC,
		ReplyTo:     reply,
		Subject:     r.subject(r.cfg.AdminSubject, DefaultAdminSubject),
		Body:        r.body(tmpl, admin, reply, r.cfg.AdminIsHTML),
		HTML:        r.cfg.AdminIsHTML,
		Attachments: attachments,
		Date:        r.p.now(),
	}
	return r.deliver(event.AdminMail, msg)
}

func (r *run) sendReply(admin, reply string, uploads []mail.Attachment) error {
	if !r.cfg.AutoReply || reply == "" {
		r.log.Debug().Msg("Auto reply disabled or no reply address")
		return nil
	}
	ref := r.cfg.TmplMailReply
	if r.cfg.TmplMailReplyMobile != "" && policy.IsMobile(reply) {
		ref = r.cfg.TmplMailReplyMobile
	}
	tmpl, err := r.load(ref)
	if err != nil {
		return err
	}
	var attachments []mail.Attachment
	if path := r.cfg.AttachFile; path != "" {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			attachments = append(attachments, mail.Attachment{Path: path, Name: r.cfg.AttachFileName})
		}
	}
	attachments = append(attachments, uploads...)
	msg := &mail.Message{
		From:        policy.NewOrigin(admin, r.cfg.ReplyFromName),
		To:          []string{reply},
		Subject:     r.subject(r.cfg.ReplySubject, DefaultReplySubject),
		Body:        r.body(tmpl, admin, reply, r.cfg.ReplyIsHTML),
		HTML:        r.cfg.ReplyIsHTML,
		Attachments: attachments,
		Date:        r.p.now(),
	}
	r.log.Debug().Str("template", ref).Msg("Sending auto reply")
	return r.deliver(event.ReplyMail, msg)
}

// deliver lets extensions veto the mail, then sends it.
func (r *run) deliver(kind string, msg *mail.Message) error {
	if r.cfg.DebugMode {
		preview := sanitize.Strict(msg.Body)
		if utf8.RuneCountInString(preview) > 100 {
			preview = string([]rune(preview)[:100])
		}
		r.log.Debug().Str("kind", kind).Strs("to", msg.To).Strs("cc", msg.CC).Strs("bcc", msg.BCC).
			Str("from", msg.From.String()).Str("replyTo", msg.ReplyTo).Str("subject", msg.Subject).
			Bool("html", msg.HTML).Bool("attachments", len(msg.Attachments) > 0).
			Str("preview", preview).Msg("Sending mail")
	}
	if r.p.Ext != nil {
		verdict := r.p.Ext.Events.BeforeMailSent.Emit(&event.OutboundMail{
			Form:    r.cfg.Name,
			Kind:    kind,
			To:      msg.To,
			From:    msg.From.Address.Address,
			Subject: msg.Subject,
			Body:    msg.Body,
		})
		if verdict != nil && verdict.Deny {
			r.log.Info().Str("kind", kind).Str("reason", verdict.Reason).Msg("Mail denied by extension")
			return &TransportError{Reason: "Mail was rejected: " + verdict.Reason}
		}
	}
	if err := r.p.Mailer.Send(r.ctx, msg); err != nil {
		r.log.Error().Str("kind", kind).Strs("to", msg.To).Strs("cc", msg.CC).
			Str("from", msg.From.Address.Address).Str("subject", msg.Subject).Err(err).
			Msg("Failed to send mail")
		return &TransportError{Reason: "Failed to send mail", Err: err}
	}
	r.log.Debug().Str("kind", kind).Msg("Mail sent")
	return nil
}

// subject fills the placeholders of a configured subject or sender name.
func (r *run) subject(tmpl, fallback string) string {
	if tmpl == "" {
		return fallback
	}
	return r.header(tmpl)
}

func (r *run) header(tmpl string) string {
	if tmpl == "" {
		return ""
	}
	return placeholder.Clear(r.eng.Replace(tmpl, r.req.Values.Map(), ","))
}

// body renders a mail template. HTML mails encode submitted values, or sanitize them when the
// form allows HTML input.
func (r *run) body(tmpl, admin, reply string, isHTML bool) string {
	join := "\n"
	if r.cfg.AllowHTML {
		join = "<br />"
	}
	values := make(map[string]form.Value)
	for _, name := range r.req.Values.Keys() {
		v := r.req.Values.Value(name)
		switch {
		case !isHTML:
		case !r.cfg.AllowHTML:
			v = v.Map(func(s string) string { return stringutil.EncodeHTML(s, true) })
		default:
			v = v.Map(func(s string) string {
				clean, err := sanitize.Markup(stringutil.NL2BR(s))
				if err != nil {
					return stringutil.EncodeHTML(s, true)
				}
				return clean
			})
		}
		values[name] = v
	}
	extra := placeholder.Strings(map[string]string{
		"senddate":    r.p.now().Format(sendDateLayout),
		"adminmail":   admin,
		"sender_ip":   r.req.RemoteAddr,
		"sender_host": r.p.lookupAddr(r.ctx, r.req.RemoteAddr),
		"sender_ua":   stringutil.EncodeHTML(r.req.UserAgent, false),
		"reply_to":    reply,
	})
	tmpl = strings.ReplaceAll(strings.ReplaceAll(tmpl, "\r\n", "\n"), "\r", "\n")
	return placeholder.Clear(r.eng.Replace(tmpl, placeholder.Merge(values, extra), join))
}

// stagedAttachments lists the staged uploads that still exist, ordered by field.
func (r *run) stagedAttachments() []mail.Attachment {
	records := stagedRecords(r.sess)
	fields := make([]string, 0, len(records))
	for field := range records {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	var out []mail.Attachment
	for _, field := range fields {
		rec := records[field]
		if info, err := os.Stat(rec.Path); err != nil || !info.Mode().IsRegular() {
			continue
		}
		name := rec.Name
		if name == "" {
			name = filepath.Base(rec.Path)
		}
		out = append(out, mail.Attachment{Path: rec.Path, Name: name})
	}
	return out
}
