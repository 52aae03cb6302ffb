package config

import (
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	prefix      = "formmailer"
	tableFormat = `FormMailer is configured via the environment. The following environment
variables can be used:

KEY	DEFAULT	REQUIRED	DESCRIPTION
{{range .}}{{usage_key .}}	{{usage_default .}}	{{usage_required .}}	{{usage_description .}}
{{end}}`
)

var (
	// Version of this build, set by main
	Version = ""

	// BuildDate for this build, set by main
	BuildDate = ""
)

// mailMode values.
const (
	MailSMTP = "smtp"
	MailDir  = "dir"
)

// Root wraps all other configurations.
type Root struct {
	LogLevel  string `required:"true" default:"info" desc:"debug, info, warn, or error"`
	Web       Web
	Templates Templates
	Upload    Upload
	Mail      Mail
	Storage   Storage
	Lua       Lua
}

// Web contains the HTTP server configuration.
type Web struct {
	Addr           string        `required:"true" default:"0.0.0.0:9080" desc:"Web server IP4 host:port"`
	BasePath       string        `default:"" desc:"Base path prefix for UI and API URLs"`
	LayoutFile     string        `desc:"HTML layout wrapping rendered forms, must contain [+content+]"`
	CookieAuthKey  string        `desc:"Session cookie signing key (text)"`
	CookieName     string        `required:"true" default:"formmailer" desc:"Session cookie name"`
	SessionTTL     time.Duration `required:"true" default:"30m" desc:"Idle session lifetime"`
	MaxUploadBytes int64         `required:"true" default:"10485760" desc:"Maximum multipart request size"`
}

// Templates contains the template store configuration.
type Templates struct {
	ChunkDir    string   `required:"true" default:"templates/chunks" desc:"Named chunk directory"`
	ResourceDir string   `required:"true" default:"templates/resources" desc:"Numeric resource directory"`
	BaseDirs    []string `default:"templates" desc:"Base dirs searched by @FILE: references"`
}

// Upload contains the temporary upload configuration.
type Upload struct {
	TmpDir          string        `required:"true" default:"/tmp/formmailer" desc:"Temporary upload directory"`
	RetentionPeriod time.Duration `required:"true" default:"24h" desc:"Duration to retain abandoned uploads"`
	RetentionSleep  time.Duration `required:"true" default:"50ms" desc:"Duration to sleep between deletes"`
}

// Mail contains the outbound mail configuration.
type Mail struct {
	Mode     string `required:"true" default:"smtp" desc:"smtp or dir"`
	SMTPAddr string `required:"true" default:"127.0.0.1:25" desc:"SMTP relay host:port"`
	Username string `desc:"SMTP auth username"`
	Password string `desc:"SMTP auth password"`
	DropDir  string `default:"/tmp/formmailer-mail" desc:"Directory receiving .eml files in dir mode"`
}

// Storage contains the submission store configuration.
type Storage struct {
	Type string `required:"true" default:"memory" desc:"Storage impl: memory or sqlite"`
	Path string `default:"/tmp/formmailer.db" desc:"Database path for sqlite"`
	// FormCap limits the submissions kept per form by the memory store.
	FormCap int `default:"500" desc:"Submissions kept per form in memory, 0 for unlimited"`
}

// Lua contains the Lua extension host configuration.
type Lua struct {
	Path string `default:"formmailer.lua" desc:"Lua script path"`
}

// Process loads and parses configuration from the environment.
func Process() (*Root, error) {
	c := &Root{}
	err := envconfig.Process(prefix, c)
	return c, err
}

// Usage prints out the envconfig usage to Stderr.
func Usage() {
	tabs := tabwriter.NewWriter(os.Stderr, 1, 0, 4, ' ', 0)
	if err := envconfig.Usagef(prefix, &Root{}, tabs, tableFormat); err != nil {
		log.Fatalf("Unable to parse env config: %v", err)
	}
	tabs.Flush()
}
