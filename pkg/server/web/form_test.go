package web

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/formmailer/formmailer/pkg/extension"
	"github.com/formmailer/formmailer/pkg/flow"
	"github.com/formmailer/formmailer/pkg/session"
	"github.com/formmailer/formmailer/pkg/template"
	"github.com/formmailer/formmailer/pkg/test"
	"github.com/formmailer/formmailer/pkg/upload"
	"github.com/formmailer/formmailer/pkg/validate"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenInput = regexp.MustCompile(`name="_cffm_token" value="([^"]+)"`)

type formServer struct {
	router *mux.Router
	mailer *test.MailerStub
	tmpDir string
	cookie *http.Cookie
}

func newFormServer(t *testing.T, layout string) *formServer {
	t.Helper()
	tmpls := template.NewMemStore()
	tmpls.Add("contact", "tmpl_input=input\ntmpl_conf=conf\ntmpl_comp=comp\ntmpl_mail_admin=admin\n"+
		"admin_mail=admin@example.com\n")
	tmpls.Add("sjis", "tmpl_input=input\ntmpl_conf=conf\ntmpl_comp=comp\ntmpl_mail_admin=admin\n"+
		"admin_mail=admin@example.com\ncharset=shift_jis\n")
	tmpls.Add("input", `<form method="post">
<input type="text" name="name" valid="1" />
<input type="file" name="photo" />
</form>`)
	tmpls.Add("conf", `<form method="post"><p>[+name+]</p><p>[+photo.filename+]</p></form>`)
	tmpls.Add("comp", `<p>Done [+name+]</p>`)
	tmpls.Add("admin", `Name: [+name+]`)
	tmpls.Add("7", `<p>Thanks page</p>`)

	tmpDir := t.TempDir()
	mgr, err := upload.NewManager(filepath.Join(t.TempDir(), "staged"), test.InspectorStub{Mime: "text/plain"})
	require.NoError(t, err)
	host := extension.NewHost()
	mailer := &test.MailerStub{}
	fh := &FormHandler{
		Processor: &flow.Processor{
			Templates: tmpls,
			Mailer:    mailer,
			Validator: validate.NewEngine(host),
			Ext:       host,
			Uploads:   mgr,
			Inspector: test.InspectorStub{Mime: "text/plain"},
			LookupAddr: func(_ context.Context, ip string) string {
				return ip
			},
		},
		Sessions:       session.NewManager("fm", []byte("0123456789abcdef0123456789abcdef"), time.Hour),
		Layout:         layout,
		MaxUploadBytes: 1 << 20,
		TmpDir:         tmpDir,
	}
	r := mux.NewRouter()
	SetupRoutes(r, fh)
	return &formServer{router: r, mailer: mailer, tmpDir: tmpDir}
}

func (fs *formServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if fs.cookie != nil {
		req.AddCookie(fs.cookie)
	}
	w := httptest.NewRecorder()
	fs.router.ServeHTTP(w, req)
	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		fs.cookie = cookies[0]
	}
	return w
}

func (fs *formServer) post(t *testing.T, path string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return fs.do(t, req)
}

func TestFormGetRendersInput(t *testing.T) {
	fs := newFormServer(t, "<html><body>[+content+]</body></html>")
	w := fs.do(t, httptest.NewRequest(http.MethodGet, "/form/contact", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "<html><body><form"))
	assert.Contains(t, body, `<input type="hidden" name="_mode" value="conf" />`)
	assert.NotContains(t, body, "valid=")
	assert.NotNil(t, fs.cookie)
}

func TestFormConfirmAndSend(t *testing.T) {
	fs := newFormServer(t, "")
	w := fs.post(t, "/form/contact", url.Values{"_mode": {"conf"}, "name": {"Taro"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<p>Taro</p>")
	m := tokenInput.FindStringSubmatch(w.Body.String())
	require.NotNil(t, m, w.Body.String())

	w = fs.post(t, "/form/contact", url.Values{"_mode": {"send"}, "name": {"Taro"}, "_cffm_token": {m[1]}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>Done Taro</p>", w.Body.String())
	sent := fs.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, "Name: Taro")

	// Replaying the token in a new session is rejected.
	fs.cookie = nil
	w = fs.post(t, "/form/contact", url.Values{"_mode": {"send"}, "name": {"Taro"}, "_cffm_token": {m[1]}})
	assert.Contains(t, w.Body.String(), "SYSTEM ERROR::"+flow.MsgInvalidTransition)
	assert.Len(t, fs.mailer.Sent(), 1)
}

func TestFormMultipartUpload(t *testing.T) {
	fs := newFormServer(t, "")
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("_mode", "conf"))
	require.NoError(t, mw.WriteField("name", "Taro"))
	fw, err := mw.CreateFormFile("photo", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/form/contact", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := fs.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<p>notes.txt</p>")

	// The upload was staged and nothing is left in the temp dir.
	left, err := os.ReadDir(fs.tmpDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestFormValidationFailureCleansTempFiles(t *testing.T) {
	fs := newFormServer(t, "")
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("_mode", "conf"))
	fw, err := mw.CreateFormFile("photo", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/form/contact", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := fs.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="_mode" value="conf"`)

	left, err := os.ReadDir(fs.tmpDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestFormUnknownConfig(t *testing.T) {
	fs := newFormServer(t, "")
	w := fs.do(t, httptest.NewRequest(http.MethodGet, "/form/missing", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "<strong>ERROR!</strong> "))
}

func TestFormShiftJIS(t *testing.T) {
	fs := newFormServer(t, "")
	// "あ" in Shift_JIS.
	req := httptest.NewRequest(http.MethodPost, "/form/sjis",
		strings.NewReader("_mode=conf&name=%82%A0"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := fs.do(t, req)

	assert.Equal(t, "text/html; charset=shift_jis", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<p>\x82\xa0</p>")
}

func TestPage(t *testing.T) {
	fs := newFormServer(t, "<main>[+content+]</main>")
	w := fs.do(t, httptest.NewRequest(http.MethodGet, "/page/7", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<main><p>Thanks page</p></main>", w.Body.String())

	w = fs.do(t, httptest.NewRequest(http.MethodGet, "/page/8", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWrap(t *testing.T) {
	assert.Equal(t, "x", Wrap("", "x"))
	assert.Equal(t, "x", Wrap("<no placeholder>", "x"))
	assert.Equal(t, "<b>x</b>[+content+]", Wrap("<b>[+content+]</b>[+content+]", "x"))
}
