package policy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/form"
	"github.com/formmailer/formmailer/pkg/stringutil"
)

// ErrReplyToConfig indicates a reply_to composition refers to an empty field.
var ErrReplyToConfig = errors.New("reply_to setting is not valid")

var (
	emailPattern = regexp.MustCompile(
		`(?i)^(?:[a-z0-9+_-]+?\.)*?[a-z0-9_+-]+?@(?:[a-z0-9_-]+?\.)*?[a-z0-9_-]+?\.[a-z0-9]{2,5}$`)
	mobileCarriers = regexp.MustCompile(`(docomo\.ne\.jp|ezweb\.ne\.jp|softbank\.ne\.jp)$`)
)

// Addressing handles email address policy for one form.
type Addressing struct {
	Config *config.Form
}

// AdminRecipients resolves the admin mail recipients. When the form configures a dynamic send-to
// field and its submitted value has an entry in the dynamic table, that entry replaces admin_mail.
// Invalid addresses are dropped.
func (a *Addressing) AdminRecipients(values *form.Values, dynamic map[string]string) []string {
	list := a.Config.AdminMail
	if field := a.Config.DynamicSendToField; field != "" && len(dynamic) > 0 {
		if v := values.Value(field).String(); v != "" {
			if to, ok := dynamic[v]; ok {
				list = to
			}
		}
	}
	return FilterValid(list)
}

// Recipients returns the complete admin mail addressing.
func (a *Addressing) Recipients(values *form.Values, dynamic map[string]string) Recipients {
	return Recipients{
		To:  a.AdminRecipients(values, dynamic),
		CC:  FilterValid(a.Config.AdminMailCC),
		BCC: FilterValid(a.Config.AdminMailBCC),
	}
}

// ReplyAddress computes the visitor's address for Reply-To and auto reply. It is empty unless
// auto reply is enabled. A reply_to setting containing '+' joins its parts, where a bare "@" is
// literal and every other part names a field that must be non-empty.
func (a *Addressing) ReplyAddress(values *form.Values) (string, error) {
	if !a.Config.AutoReply {
		return "", nil
	}
	composition := a.Config.ReplyTo
	if !strings.Contains(composition, "+") {
		return values.Value(composition).String(), nil
	}
	var b strings.Builder
	for _, part := range strings.Split(composition, "+") {
		part = strings.TrimSpace(part)
		if part == "@" {
			b.WriteString("@")
			continue
		}
		v := values.Value(part).String()
		if v == "" || v == "0" {
			return "", fmt.Errorf("%w: field %q is empty", ErrReplyToConfig, part)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// ValidEmail reports whether addr looks like a deliverable address.
func ValidEmail(addr string) bool {
	if !emailPattern.MatchString(addr) {
		return false
	}
	_, domain, _ := strings.Cut(addr, "@")
	return ValidateDomainPart(domain)
}

// FilterValid splits a comma separated address list and keeps the valid entries.
func FilterValid(list string) []string {
	var valid []string
	for _, addr := range stringutil.SplitTrim(list, ",") {
		if ValidEmail(addr) {
			valid = append(valid, addr)
		}
	}
	return valid
}

// IsMobile reports whether addr belongs to a Japanese mobile carrier.
func IsMobile(addr string) bool {
	return mobileCarriers.MatchString(addr)
}

// ValidateDomainPart returns true if the domain part complies to RFC3696, RFC1035.
func ValidateDomainPart(domain string) bool {
	if len(domain) == 0 {
		return false
	}
	if len(domain) > 255 {
		return false
	}
	if domain[len(domain)-1] != '.' {
		domain += "."
	}
	prev := '.'
	labelLen := 0
	hasAlphaNum := false
	for _, c := range domain {
		switch {
		case ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') ||
			('0' <= c && c <= '9') || c == '_':
			// Must contain some of these to be a valid label.
			hasAlphaNum = true
			labelLen++
		case c == '-':
			if prev == '.' {
				// Cannot lead with hyphen.
				return false
			}
		case c == '.':
			if prev == '.' || prev == '-' {
				// Cannot end with hyphen or double-dot.
				return false
			}
			if labelLen > 63 {
				return false
			}
			if !hasAlphaNum {
				return false
			}
			labelLen = 0
			hasAlphaNum = false
		default:
			return false
		}
		prev = c
	}
	return true
}
