// Package validate runs the rule chains declared in form templates against submitted values.
package validate

import (
	"errors"
	"os"

	"github.com/formmailer/formmailer/pkg/extension"
	"github.com/formmailer/formmailer/pkg/form"
	"github.com/formmailer/formmailer/pkg/policy"
	"github.com/formmailer/formmailer/pkg/upload"
	"github.com/rs/zerolog/log"
)

// ReplyToField is the pseudo field collecting reply address errors.
const ReplyToField = "reply_to"

// Messages for checks made outside of rule chains.
const (
	MsgInputRequired     = "Input required"
	MsgSelectionRequired = "Selection required"
	MsgReplyToInvalid    = "Invalid format"
	replyToLabel         = "Email address"
)

// Extensions provides user registered validators.
type Extensions interface {
	Validator(name string) (extension.Validator, bool)
}

// Context carries the per-request state rules may consult.
type Context struct {
	// Uploads holds the files posted with this request, by field.
	Uploads map[string]upload.File
	// Staged holds uploads recorded by an earlier confirm step.
	Staged upload.Records
	// Return is set when the visitor navigates back to the input screen.
	Return bool
	// Captcha enables the vericode rule; Veriword is the expected answer.
	Captcha  bool
	Veriword string
	// AutoReply enables the check of the reply address. ReplyAddress, when set, computes it from
	// the normalized values; otherwise ReplyTo is checked.
	AutoReply    bool
	ReplyTo      string
	ReplyAddress func(*form.Values) string
	// Inspector resolves the type of fresh uploads for allowtype.
	Inspector upload.Inspector
}

func (c *Context) uploaded(field string) (upload.File, bool) {
	if c == nil {
		return upload.File{}, false
	}
	f, ok := c.Uploads[field]
	return f, ok && f.TempPath != ""
}

func (c *Context) staged(field string) bool {
	if c == nil {
		return false
	}
	rec, ok := c.Staged[field]
	if !ok {
		return false
	}
	info, err := os.Stat(rec.Path)
	return err == nil && info.Mode().IsRegular()
}

// Call is a single rule invocation.
type Call struct {
	Field string
	// Value is the field value when the rule chain started.
	Value  form.Value
	Param  string
	Values *form.Values
	Schema form.Schema
	Ctx    *Context
}

// Current returns the field's value as modified by earlier rules.
func (c *Call) Current() form.Value {
	return c.Values.Value(c.Field)
}

// Set replaces the field's value.
func (c *Call) Set(v form.Value) {
	c.Values.Set(c.Field, v)
}

// Rule is a built-in validation rule. A non-nil error fails the field with its message.
type Rule func(c *Call) error

// Engine validates submitted values against a form schema.
type Engine struct {
	Ext   Extensions
	rules map[string]Rule
}

// NewEngine returns an Engine with the built-in rules registered.
func NewEngine(ext Extensions) *Engine {
	return &Engine{Ext: ext, rules: builtinRules()}
}

// Register adds or replaces a built-in rule.
func (e *Engine) Register(name string, r Rule) {
	e.rules[name] = r
}

// Validate checks values against schema, normalizing values in place, and returns the collected
// errors. The result is empty when values are acceptable.
func (e *Engine) Validate(values *form.Values, schema form.Schema, ctx *Context) *form.Errors {
	errs := form.NewErrors()
	for _, field := range schema {
		label := schema.Label(field.Name)
		if field.Type != "textarea" && values.Has(field.Name) {
			values.Set(field.Name, values.Value(field.Name).Map(stripNewlines))
		}

		if field.Required {
			e.checkRequired(values, field, label, ctx, errs)
		}

		value := values.Value(field.Name)
		_, hasUpload := ctx.uploaded(field.Name)
		if value.IsEmpty() && !hasUpload {
			continue
		}
		for _, rule := range field.Rules {
			call := &Call{
				Field:  field.Name,
				Value:  value,
				Param:  rule.Param,
				Values: values,
				Schema: schema,
				Ctx:    ctx,
			}
			if err := e.run(rule.Name, call); err != nil {
				errs.Add(field.Name, label, err.Error())
			}
		}
	}

	if ctx != nil && ctx.AutoReply {
		addr := ctx.ReplyTo
		if ctx.ReplyAddress != nil {
			addr = ctx.ReplyAddress(values)
		}
		if !policy.ValidEmail(addr) {
			errs.Add(ReplyToField, replyToLabel, MsgReplyToInvalid)
		}
	}
	return errs
}

func (e *Engine) checkRequired(values *form.Values, field form.Field, label string, ctx *Context,
	errs *form.Errors) {
	if field.Type == "file" {
		_, hasUpload := ctx.uploaded(field.Name)
		returning := ctx != nil && ctx.Return
		if !ctx.staged(field.Name) && !returning && !hasUpload {
			errs.Add(field.Name, label, MsgSelectionRequired)
		}
		return
	}
	if !values.Value(field.Name).IsEmpty() {
		return
	}
	switch field.Type {
	case "radio", "select":
		errs.Add(field.Name, label, MsgSelectionRequired)
	default:
		errs.Add(field.Name, label, MsgInputRequired)
	}
}

// run executes the built-in rule, then the extension rule of the same name. At most one error is
// reported per rule token.
func (e *Engine) run(name string, call *Call) error {
	known := false
	if rule, ok := e.rules[name]; ok {
		known = true
		if err := rule(call); err != nil {
			return err
		}
	}
	if e.Ext != nil {
		if v, ok := e.Ext.Validator(name); ok {
			known = true
			if err := v(call.Value, call.Param); err != nil {
				return err
			}
		}
	}
	if !known {
		log.Debug().Str("module", "validate").Str("field", call.Field).Str("rule", name).
			Msg("Unknown rule ignored")
	}
	return nil
}

func stripNewlines(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\r' && s[i] != '\n' {
			b = append(b, s[i])
		}
	}
	return string(b)
}

// errRule builds rule failures.
func errRule(msg string) error {
	return errors.New(msg)
}
