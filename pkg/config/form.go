package config

import (
	"bufio"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Form holds the settings of one form, loaded from a config chunk.
type Form struct {
	Name string `key:"-"`

	TmplInput           string `key:"tmpl_input"`
	TmplConf            string `key:"tmpl_conf"`
	TmplComp            string `key:"tmpl_comp"`
	TmplMailAdmin       string `key:"tmpl_mail_admin"`
	TmplMailReply       string `key:"tmpl_mail_reply"`
	TmplMailReplyMobile string `key:"tmpl_mail_reply_mobile"`
	CompleteRedirect    string `key:"complete_redirect"`

	AdminMail     string `key:"admin_mail"`
	AdminMailCC   string `key:"admin_mail_cc"`
	AdminMailBCC  string `key:"admin_mail_bcc"`
	AdminName     string `key:"admin_name"`
	AdminSubject  string `key:"admin_subject"`
	AdminIsHTML   bool   `key:"admin_ishtml"`
	AutoReply     bool   `key:"auto_reply"`
	ReplyTo       string `key:"reply_to"`
	ReplySubject  string `key:"reply_subject"`
	ReplyFromName string `key:"reply_fromname"`
	ReplyIsHTML   bool   `key:"reply_ishtml"`
	AllowHTML     bool   `key:"allow_html"`

	Autosave           bool   `key:"autosave"`
	SendMail           bool   `key:"send_mail"`
	Vericode           bool   `key:"vericode"`
	CaptchaURL         string `key:"captcha_url"`
	InvalidClass       string `key:"invalid_class"`
	DynamicSendToField string `key:"dynamic_send_to_field"`
	AttachFile         string `key:"attach_file"`
	AttachFileName     string `key:"attach_file_name"`
	UseStoreDB         bool   `key:"use_store_db"`
	DebugMode          bool   `key:"debug_mode"`
	Charset            string `key:"charset"`
	FilterModifiers    bool   `key:"filter_modifiers"`

	// Extra holds keys not mapped to a field above.
	Extra map[string]string `key:"-"`
}

// DefaultForm returns a Form populated with default settings.
func DefaultForm(name string) *Form {
	return &Form{
		Name:            name,
		Charset:         "utf-8",
		ReplyTo:         "email",
		SendMail:        true,
		FilterModifiers: true,
		Extra:           make(map[string]string),
	}
}

// meaningfulLine matches config lines that carry at least one setting character.
var meaningfulLine = regexp.MustCompile(`[a-zA-Z0-9=]`)

// ParseForm parses a config chunk. Chunks named *.yml or *.yaml are decoded as YAML mappings,
// anything else as key=value lines.
func ParseForm(name, text string) (*Form, error) {
	var settings [][2]string
	var err error
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml") {
		settings, err = parseYAML(text)
	} else {
		settings, err = parseLines(text)
	}
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", name, err)
	}
	f := DefaultForm(name)
	for _, kv := range settings {
		f.set(kv[0], kv[1])
	}
	return f, nil
}

func parseLines(text string) ([][2]string, error) {
	var settings [][2]string
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || !meaningfulLine.MatchString(line) {
			continue
		}
		key, val, _ := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		settings = append(settings, [2]string{key, strings.TrimSpace(val)})
	}
	return settings, scanner.Err()
}

func parseYAML(text string) ([][2]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of settings", root.Line)
	}
	var settings [][2]string
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: setting %q must be a scalar", v.Line, k.Value)
		}
		settings = append(settings, [2]string{k.Value, strings.TrimSpace(v.Value)})
	}
	return settings, nil
}

// set assigns a raw setting to the field tagged with key, or to Extra.
func (f *Form) set(key, val string) {
	rv := reflect.ValueOf(f).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if rt.Field(i).Tag.Get("key") != key {
			continue
		}
		switch fv := rv.Field(i); fv.Kind() {
		case reflect.Bool:
			fv.SetBool(Truthy(val))
		case reflect.String:
			fv.SetString(val)
		}
		return
	}
	f.Extra[key] = val
}

// Get returns the raw value of any setting by key.
func (f *Form) Get(key string) string {
	rv := reflect.ValueOf(f).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if rt.Field(i).Tag.Get("key") != key {
			continue
		}
		switch fv := rv.Field(i); fv.Kind() {
		case reflect.Bool:
			if fv.Bool() {
				return "1"
			}
			return "0"
		case reflect.String:
			return fv.String()
		}
	}
	return f.Extra[key]
}

// Problems lists missing required settings. A form with problems must not be rendered.
func (f *Form) Problems() []string {
	var problems []string
	if f.TmplInput == "" {
		problems = append(problems, "`tmpl_input` (input screen template) is required")
	}
	if f.TmplConf == "" {
		problems = append(problems, "`tmpl_conf` (confirm screen template) is required")
	}
	if f.TmplComp == "" && f.CompleteRedirect == "" {
		problems = append(problems,
			"`tmpl_comp` (complete screen template) or `complete_redirect` is required")
	}
	if f.TmplMailAdmin == "" {
		problems = append(problems, "`tmpl_mail_admin` (admin mail template) is required")
	}
	if f.AutoReply && f.TmplMailReply == "" {
		problems = append(problems, "`tmpl_mail_reply` (auto reply template) is required")
	}
	return problems
}

// Truthy interprets a setting value as a flag.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "off", "no":
		return false
	}
	return true
}
