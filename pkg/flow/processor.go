// Package flow drives a form through its input, confirm and send steps.
package flow

import (
	"context"
	"expvar"
	"net"
	"strings"
	"time"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/extension"
	"github.com/formmailer/formmailer/pkg/form"
	"github.com/formmailer/formmailer/pkg/mail"
	"github.com/formmailer/formmailer/pkg/metric"
	"github.com/formmailer/formmailer/pkg/placeholder"
	"github.com/formmailer/formmailer/pkg/session"
	"github.com/formmailer/formmailer/pkg/storage"
	"github.com/formmailer/formmailer/pkg/template"
	"github.com/formmailer/formmailer/pkg/upload"
	"github.com/formmailer/formmailer/pkg/validate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Session keys.
const (
	AutosaveKey      = "_cf_autosave"
	TokenKey         = "_cffm_token"
	FingerprintKey   = "_cffm_recently_send"
	DynamicSendToKey = "dynamic_send_to"
	VeriwordKey      = "veriword"
)

// State is a step of the submission flow.
type State int

// Flow states.
const (
	StateInput State = iota
	StateReturn
	StateConfirm
	StateSend
	StateComplete
	StateSystemError
)

var stateNames = [...]string{"input", "return", "confirm", "send", "complete", "system_error"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

var expConfirmed, expSent, expRejected, expFailed *metric.Counter

func init() {
	fm := expvar.NewMap("flow")
	expConfirmed = metric.NewCounter(fm, "Confirmed")
	expSent = metric.NewCounter(fm, "Sent")
	expRejected = metric.NewCounter(fm, "Rejected")
	expFailed = metric.NewCounter(fm, "Failed")
}

// Request is one post to a form.
type Request struct {
	// Posted is set when the request carried any form data or files.
	Posted bool
	// Values is the sanitized submission.
	Values  *form.Values
	Mode    string
	Token   string
	Return  bool
	Uploads map[string]upload.File

	RemoteAddr string
	UserAgent  string
}

// Response is the outcome of a step: HTML to show, or a URL to redirect to.
type Response struct {
	State    State
	HTML     string
	Redirect string
	Err      error
}

// Processor runs the submission flow. Templates, Mailer and Validator are required; the rest are
// optional.
type Processor struct {
	Templates template.Store
	Mailer    mail.Mailer
	Validator *validate.Engine
	Ext       *extension.Host
	Store     storage.Store
	Uploads   *upload.Manager
	Inspector upload.Inspector

	// ResourceURL maps a numeric complete_redirect to a URL.
	ResourceURL func(id string) string
	// LookupAddr resolves the visitor's host name for mail placeholders.
	LookupAddr func(ctx context.Context, ip string) string
	Now        func() time.Time
	NewToken   func() string
}

// LoadConfig loads and checks the settings chunk of a form.
func (p *Processor) LoadConfig(ref string) (*config.Form, error) {
	text, err := p.Templates.Load(ref)
	if err != nil {
		return nil, &ConfigError{Problems: []string{"Failed to read the form settings (" + ref + ")"}}
	}
	cfg, err := config.ParseForm(strings.TrimSpace(ref), text)
	if err != nil {
		return nil, &ConfigError{Problems: []string{err.Error()}}
	}
	if problems := cfg.Problems(); len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	return cfg, nil
}

// Process advances the flow for one request. It always returns a Response; failures are
// rendered into Response.HTML and reported in Response.Err.
func (p *Processor) Process(ctx context.Context, cfg *config.Form, sess session.Store,
	req *Request) *Response {
	if req.Values == nil {
		req.Values = form.NewValues()
	}
	logger := log.With().Str("module", "flow").Str("form", cfg.Name).Logger()
	st := &run{p: p, cfg: cfg, sess: sess, req: req, ctx: ctx, log: &logger, eng: p.engine(cfg)}

	resp, err := st.dispatch()
	if err != nil {
		logger.Warn().Err(err).Str("mode", req.Mode).Msg("Form step failed")
		expFailed.Add(1)
		return &Response{State: StateSystemError, HTML: ErrorHTML(err), Err: err}
	}
	return resp
}

func (p *Processor) engine(cfg *config.Form) *placeholder.Engine {
	eng := placeholder.NewEngine(p.Ext)
	eng.Modifiers = cfg.FilterModifiers
	return eng
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Processor) token() string {
	if p.NewToken != nil {
		return p.NewToken()
	}
	return uuid.NewString()
}

func (p *Processor) lookupAddr(ctx context.Context, ip string) string {
	if ip == "" {
		return ""
	}
	if p.LookupAddr != nil {
		return p.LookupAddr(ctx, ip)
	}
	names, err := net.DefaultResolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ip
	}
	return strings.TrimSuffix(names[0], ".")
}

func (p *Processor) resourceURL(id string) string {
	if p.ResourceURL != nil {
		return p.ResourceURL(id)
	}
	return "/" + id
}

// run carries the state of one Process call.
type run struct {
	p    *Processor
	cfg  *config.Form
	sess session.Store
	req  *Request
	ctx  context.Context
	log  *zerolog.Logger
	eng  *placeholder.Engine
}

func (r *run) dispatch() (*Response, error) {
	if !r.req.Posted {
		return r.renderInput()
	}
	if r.req.Return {
		return r.renderReturn()
	}
	if prev, ok := r.sess.Get(FingerprintKey); ok {
		if sent, ok := prev.(*form.Values); ok && sent.Equal(r.req.Values) {
			expRejected.Add(1)
			return nil, &SecurityError{Reason: MsgAlreadySent}
		}
	}
	switch r.req.Mode {
	case form.ModeConfirm:
		return r.confirm()
	case form.ModeSend:
		return r.send()
	}
	return r.renderInput()
}

// confirm validates the submission against the input template and renders either the errors or
// the confirm screen.
func (r *run) confirm() (*Response, error) {
	input, err := r.load(r.cfg.TmplInput)
	if err != nil {
		return nil, err
	}
	schema, err := form.Parse(input)
	if err != nil {
		return nil, &TemplateError{Ref: r.cfg.TmplInput, Err: err}
	}
	if field := r.cfg.DynamicSendToField; field != "" {
		if table := form.DynamicSendTo(input, schema, field); table != nil {
			r.sess.Set(DynamicSendToKey, table)
		} else {
			r.sess.Delete(DynamicSendToKey)
		}
	}

	var replyErr error
	vctx := &validate.Context{
		Uploads:   r.req.Uploads,
		Staged:    stagedRecords(r.sess),
		Return:    r.req.Return,
		Captcha:   r.cfg.Vericode,
		Veriword:  session.GetString(r.sess, VeriwordKey),
		AutoReply: r.cfg.AutoReply,
		ReplyAddress: func(vs *form.Values) string {
			addr, err := r.addressing().ReplyAddress(vs)
			replyErr = err
			return addr
		},
		Inspector: r.p.Inspector,
	}
	errs := r.p.Validator.Validate(r.req.Values, schema, vctx)
	if replyErr != nil {
		return nil, &ConfigError{Problems: []string{replyErr.Error()}}
	}
	if !errs.Empty() {
		r.log.Debug().Strs("fields", errs.Fields()).Msg("Validation failed")
		return r.renderErrors(errs)
	}
	expConfirmed.Add(1)
	return r.renderConfirm()
}

// send checks the one-time token, sends the mails and completes the flow.
func (r *run) send() (*Response, error) {
	stored, _ := session.Take(r.sess, TokenKey)
	token, _ := stored.(string)
	if token == "" || token != r.req.Token {
		expRejected.Add(1)
		return nil, &SecurityError{Reason: MsgInvalidTransition}
	}

	sent, err := r.sendMail()
	if err != nil {
		return nil, err
	}

	// Staged files stay on disk for the retention scanner; only the records go.
	r.sess.Delete(upload.SessionKey)
	r.sess.Delete(AutosaveKey)
	r.sess.Set(FingerprintKey, r.req.Values.Clone())
	r.storeSubmission()
	if sent != nil {
		expSent.Add(1)
		if r.p.Ext != nil {
			r.p.Ext.Events.AfterSubmissionSent.Emit(sent)
		}
	}
	return r.complete()
}

func (r *run) storeSubmission() {
	if !r.cfg.UseStoreDB || r.p.Store == nil {
		return
	}
	sub := storage.NewSubmission(r.cfg.Name, r.req.Values, r.p.now())
	id, err := r.p.Store.Add(sub)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to store submission")
		return
	}
	r.log.Debug().Str("id", id).Msg("Stored submission")
}

func (r *run) load(ref string) (string, error) {
	text, err := r.p.Templates.Load(ref)
	if err != nil {
		return "", &TemplateError{Ref: ref, Err: err}
	}
	return text, nil
}

func stagedRecords(sess session.Store) upload.Records {
	v, ok := sess.Get(upload.SessionKey)
	if !ok {
		return nil
	}
	records, _ := v.(upload.Records)
	return records
}
