package form

import "fmt"

// Message is one validation failure for a field.
type Message struct {
	Label string
	Text  string
}

// Errors collects validation messages per field, preserving the order in
// which fields first failed.  A nil *Errors is empty.
type Errors struct {
	fields []string
	m      map[string][]Message
}

// NewErrors returns an empty Errors.
func NewErrors() *Errors {
	return &Errors{m: make(map[string][]Message)}
}

// Add records a message for field.
func (e *Errors) Add(field, label, text string) {
	if _, ok := e.m[field]; !ok {
		e.fields = append(e.fields, field)
	}
	e.m[field] = append(e.m[field], Message{Label: label, Text: text})
}

// Has reports whether field has at least one message.
func (e *Errors) Has(field string) bool {
	if e == nil {
		return false
	}
	return len(e.m[field]) > 0
}

// Empty reports whether no messages were recorded.
func (e *Errors) Empty() bool {
	return e == nil || len(e.fields) == 0
}

// Fields returns the failing field names in order.
func (e *Errors) Fields() []string {
	if e == nil {
		return nil
	}
	return append([]string{}, e.fields...)
}

// Messages returns the messages recorded for field.
func (e *Errors) Messages(field string) []Message {
	if e == nil {
		return nil
	}
	return e.m[field]
}

// Error implements error, summarizing every message.
func (e *Errors) Error() string {
	if e.Empty() {
		return "no validation errors"
	}
	n := 0
	for _, f := range e.fields {
		n += len(e.m[f])
	}
	return fmt.Sprintf("%d validation error(s), first on %q", n, e.fields[0])
}

// Placeholders returns the values used to render errors into a template:
// "error.<field>" holds the messages for each field and "errors" holds every
// message prefixed with its label, or the field name when unlabeled.
func (e *Errors) Placeholders() map[string]Value {
	ph := make(map[string]Value)
	if e.Empty() {
		return ph
	}
	var all []string
	for _, f := range e.fields {
		var texts []string
		for _, msg := range e.m[f] {
			texts = append(texts, msg.Text)
			label := msg.Label
			if label == "" {
				label = f
			}
			all = append(all, fmt.Sprintf("[%s] %s", label, msg.Text))
		}
		ph["error."+f] = List(texts...)
	}
	ph["errors"] = List(all...)
	return ph
}
