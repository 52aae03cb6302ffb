package test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/extension"
	"github.com/formmailer/formmailer/pkg/extension/luahost"
	"github.com/formmailer/formmailer/pkg/flow"
	"github.com/formmailer/formmailer/pkg/mail"
	"github.com/formmailer/formmailer/pkg/rest"
	"github.com/formmailer/formmailer/pkg/rest/client"
	"github.com/formmailer/formmailer/pkg/server/web"
	"github.com/formmailer/formmailer/pkg/session"
	"github.com/formmailer/formmailer/pkg/storage"
	"github.com/formmailer/formmailer/pkg/storage/mem"
	"github.com/formmailer/formmailer/pkg/template"
	"github.com/formmailer/formmailer/pkg/upload"
	"github.com/formmailer/formmailer/pkg/validate"
	"github.com/gorilla/mux"
	"github.com/jhillyerd/enmime/v2"
	"github.com/jhillyerd/goldiff"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/suite"
)

const luaScript = `
function formmailer.validator.nolinks(value, param)
	if string.find(value, "http", 1, true) then
		return "No links please"
	end
end

function formmailer.modifier.shout(value, param)
	return string.upper(value)
end

function formmailer.before.mail_sent(m)
	if m.kind == "admin" then
		return mail.allow()
	end
end
`

var chunks = map[string]string{
	"contact.yml": `
tmpl_input: contact_input
tmpl_conf: contact_conf
tmpl_comp: contact_comp
tmpl_mail_admin: contact_admin
admin_mail: desk@example.com
admin_name: Web Desk
admin_subject: "お問い合わせ: [+name+]"
use_store_db: 1
`,
	"contact_input.html": `<form method="post">
<input type="text" name="name" valid="1::Name" />
<input type="text" name="email" valid="1:email:Email" />
<textarea name="message" valid="1:nolinks:Message"></textarea>
<iferror.message><span class="err">[+error.message+]</span></iferror>
</form>`,
	"contact_conf.html":  `<form method="post"><p>[+name+]</p><p>[+message+]</p></form>`,
	"contact_comp.html":  `<p>Thank you</p>`,
	"contact_admin.html": "Name: [+name:shout+]\nEmail: [+email+]\n\n[+message+]\n",
}

var tokenPattern = regexp.MustCompile(`name="_cffm_token" value="([^"]+)"`)

type IntegrationSuite struct {
	suite.Suite
	server  *httptest.Server
	dropDir string
	store   storage.Store
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupSuite() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	root := s.T().TempDir()
	chunkDir := filepath.Join(root, "chunks")
	s.Require().NoError(os.MkdirAll(chunkDir, 0o750))
	for name, text := range chunks {
		s.Require().NoError(os.WriteFile(filepath.Join(chunkDir, name), []byte(text), 0o600))
	}
	s.dropDir = filepath.Join(root, "mail")
	s.Require().NoError(os.MkdirAll(s.dropDir, 0o750))
	incoming := filepath.Join(root, "incoming")
	s.Require().NoError(os.MkdirAll(incoming, 0o750))

	var err error
	s.store, err = mem.New(config.Storage{})
	s.Require().NoError(err)

	extHost := extension.NewHost()
	_, err = luahost.NewFromReader(log.Logger, extHost, strings.NewReader(luaScript), "test.lua")
	s.Require().NoError(err)

	uploads, err := upload.NewManager(filepath.Join(root, "staged"), upload.Sniffer{})
	s.Require().NoError(err)

	proc := &flow.Processor{
		Templates:  &template.FileStore{ChunkDir: chunkDir},
		Mailer:     &mail.SenderMailer{Sender: &mail.DirSender{Dir: s.dropDir}},
		Validator:  validate.NewEngine(extHost),
		Ext:        extHost,
		Store:      s.store,
		Uploads:    uploads,
		LookupAddr: func(_ context.Context, ip string) string { return ip },
	}

	r := mux.NewRouter()
	rest.SetupRoutes(r.PathPrefix("/api/").Subrouter())
	web.SetupRoutes(r, &web.FormHandler{
		Processor: proc,
		Sessions:  session.NewManager("fm", nil, time.Hour),
		TmpDir:    incoming,
	})
	// NewServer publishes the store to the REST handlers.
	web.NewServer(&config.Root{}, make(chan bool), s.store)
	s.server = httptest.NewServer(r)
}

func (s *IntegrationSuite) TearDownSuite() {
	s.server.Close()
}

func (s *IntegrationSuite) TestContactForm() {
	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	hc := &http.Client{Jar: jar}
	formURL := s.server.URL + "/form/contact.yml"

	// Input screen.
	body := s.fetch(hc.Get(formURL))
	s.Contains(body, `name="_mode" value="conf"`)

	// Lua validator rejects the message.
	values := url.Values{
		"_mode":   {"conf"},
		"name":    {"Taro Yamada"},
		"email":   {"taro@example.com"},
		"message": {"see http://spam.example"},
	}
	body = s.fetch(hc.PostForm(formURL, values))
	s.Contains(body, `class="err"`)
	s.Contains(body, "No links please")

	// Confirm screen.
	values.Set("message", "Hello there")
	body = s.fetch(hc.PostForm(formURL, values))
	s.Contains(body, "<p>Taro Yamada</p>")
	m := tokenPattern.FindStringSubmatch(body)
	s.Require().NotNil(m, body)

	// Send.
	values.Set("_mode", "send")
	values.Set("_cffm_token", m[1])
	body = s.fetch(hc.PostForm(formURL, values))
	s.Equal("<p>Thank you</p>", body)

	// The admin mail was delivered.
	files, err := filepath.Glob(filepath.Join(s.dropDir, "*.eml"))
	s.Require().NoError(err)
	s.Require().Len(files, 1)
	raw, err := os.ReadFile(files[0])
	s.Require().NoError(err)
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	s.Require().NoError(err)
	goldiff.File(s.T(), formatEnvelope(env), "testdata", "contact-admin.golden")

	// The submission is visible over REST.
	c, err := client.New(s.server.URL)
	s.Require().NoError(err)
	headers, err := c.ListForm(context.Background(), "contact.yml")
	s.Require().NoError(err)
	s.Require().Len(headers, 1)
	sub, err := headers[0].GetSubmission(context.Background())
	s.Require().NoError(err)
	name, ok := sub.Value("name")
	s.True(ok)
	s.Equal("Taro Yamada", name)

	// Replaying the send is rejected.
	body = s.fetch(hc.PostForm(formURL, values))
	s.Contains(body, "SYSTEM ERROR::")
	files, err = filepath.Glob(filepath.Join(s.dropDir, "*.eml"))
	s.Require().NoError(err)
	s.Len(files, 1)
}

func (s *IntegrationSuite) fetch(resp *http.Response, err error) string {
	s.Require().NoError(err)
	defer func() {
		_ = resp.Body.Close()
	}()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return string(b)
}

func formatEnvelope(env *enmime.Envelope) []byte {
	b := &bytes.Buffer{}
	fmt.Fprintf(b, "Subject: %v\n", env.GetHeader("Subject"))
	for _, key := range []string{"From", "To"} {
		list, _ := env.AddressList(key)
		for _, a := range list {
			fmt.Fprintf(b, "%s: %s <%s>\n", key, a.Name, a.Address)
		}
	}
	text := strings.ReplaceAll(env.Text, "\r\n", "\n")
	fmt.Fprintf(b, "\nBODY TEXT:\n%v\n", strings.TrimRight(text, "\n"))
	return b.Bytes()
}
