package flow

import (
	"errors"
	"fmt"
	"strings"
)

// User facing messages.
const (
	MsgAlreadySent       = "This form has already been submitted"
	MsgInvalidTransition = "The screen transition was not performed correctly"
	MsgNoFormData        = "No form data was received"
	MsgNoAdminAddress    = "No valid admin address is configured"
	MsgInternal          = "An internal error occurred"
)

// ConfigError reports form settings that prevent any rendering.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return strings.Join(e.Problems, "<br />")
}

// TemplateError reports a template that could not be loaded or parsed.
type TemplateError struct {
	Ref string
	Err error
}

func (e *TemplateError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("Failed to read template: %v", e.Err)
	}
	return fmt.Sprintf("Failed to read template %q: %v", e.Ref, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// SecurityError rejects a transition: a replayed token or a duplicate submission.
type SecurityError struct {
	Reason string
}

func (e *SecurityError) Error() string {
	return e.Reason
}

// TransportError reports a mail that could not be sent.
type TransportError struct {
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s::%v", e.Reason, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrorHTML renders err for the visitor. Errors outside the flow taxonomy are not shown verbatim.
func ErrorHTML(err error) string {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return "<strong>ERROR!</strong> " + cfgErr.Error()
	}
	return SystemErrorHTML(userMessage(err))
}

// SystemErrorHTML formats a system error block.
func SystemErrorHTML(msg string) string {
	return fmt.Sprintf(`<p style="color:#cc0000;background:#fff;font-weight:bold;">SYSTEM ERROR::%s</p>`, msg)
}

func userMessage(err error) string {
	var (
		tmplErr  *TemplateError
		secErr   *SecurityError
		transErr *TransportError
	)
	switch {
	case errors.As(err, &tmplErr):
		return tmplErr.Error()
	case errors.As(err, &secErr):
		return secErr.Error()
	case errors.As(err, &transErr):
		return transErr.Error()
	}
	return MsgInternal
}
