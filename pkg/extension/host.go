package extension

import (
	"sort"
	"sync"

	"github.com/formmailer/formmailer/pkg/extension/event"
	"github.com/formmailer/formmailer/pkg/form"
)

// Validator checks a field value against param.  A non-nil error fails the
// field; its message is shown to the visitor.
type Validator func(value form.Value, param string) error

// Filter renders a placeholder value, as in [+name|filter(param)+].
type Filter func(value form.Value, param string) string

// Modifier transforms a placeholder value, as in [+name:modifier=`param`+].
type Modifier func(value string, param string) string

// Host holds the extension points of the form mailer: named validators,
// filters and modifiers looked up by the rule and placeholder engines, plus
// event brokers.
type Host struct {
	Events     *Events
	Validators *Registry[Validator]
	Filters    *Registry[Filter]
	Modifiers  *Registry[Modifier]
}

// Events defines all the event types supported by the extension host.
//
// Before-events run synchronously and may change what happens next; the
// first listener to return a non-nil value decides.  After-events run
// asynchronously once the action has completed.
type Events struct {
	BeforeMailSent      EventBroker[event.OutboundMail, event.MailVerdict]
	AfterSubmissionSent AsyncEventBroker[event.Submission]
}

// NewHost creates a new extension host.
func NewHost() *Host {
	return &Host{
		Events:     &Events{},
		Validators: NewRegistry[Validator](),
		Filters:    NewRegistry[Filter](),
		Modifiers:  NewRegistry[Modifier](),
	}
}

// Validator returns the user validator registered as name.
func (h *Host) Validator(name string) (Validator, bool) {
	if h == nil {
		return nil, false
	}
	return h.Validators.Lookup(name)
}

// Filter returns the user filter registered as name.
func (h *Host) Filter(name string) (Filter, bool) {
	if h == nil {
		return nil, false
	}
	return h.Filters.Lookup(name)
}

// Modifier returns the user modifier registered as name.
func (h *Host) Modifier(name string) (Modifier, bool) {
	if h == nil {
		return nil, false
	}
	return h.Modifiers.Lookup(name)
}

// Registry maps names to handlers; safe for concurrent use.
type Registry[F any] struct {
	mu       sync.RWMutex
	handlers map[string]F
}

// NewRegistry returns an empty registry.
func NewRegistry[F any]() *Registry[F] {
	return &Registry[F]{handlers: make(map[string]F)}
}

// Register binds name to f, replacing any previous handler.
func (r *Registry[F]) Register(name string, f F) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[name] = f
}

// Lookup returns the handler bound to name.
func (r *Registry[F]) Lookup(name string) (F, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.handlers[name]
	return f, ok
}

// Names returns the registered names in sorted order.
func (r *Registry[F]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
