package web

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/formmailer/formmailer/pkg/form"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeURLEncodedKeepsOrder(t *testing.T) {
	pairs, err := decodeURLEncoded(strings.NewReader("b=2&a=1&c%5B%5D=x&c%5B%5D=y+z&&flag"))
	require.NoError(t, err)
	assert.Equal(t, []form.Pair{
		{Name: "b", Value: "2"},
		{Name: "a", Value: "1"},
		{Name: "c[]", Value: "x"},
		{Name: "c[]", Value: "y z"},
		{Name: "flag", Value: ""},
	}, pairs)

	_, err = decodeURLEncoded(strings.NewReader("a=%zz"))
	assert.Error(t, err)
}

func TestDecodeRequestControlFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/form/x",
		strings.NewReader("_mode=send&_cffm_token=tok&name=Taro&return=Back"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "192.0.2.7:5555"
	req.Header.Set("User-Agent", "tester")

	freq, cleanup, err := decodeRequest(httptest.NewRecorder(), req, nil, 0, t.TempDir())
	require.NoError(t, err)
	defer cleanup()
	assert.True(t, freq.Posted)
	assert.Equal(t, "send", freq.Mode)
	assert.Equal(t, "tok", freq.Token)
	assert.True(t, freq.Return)
	assert.Equal(t, "192.0.2.7", freq.RemoteAddr)
	assert.Equal(t, "tester", freq.UserAgent)
	assert.Equal(t, []string{"name", "return"}, freq.Values.Keys())
}

func TestDecodeRequestGet(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/form/x?name=Taro", nil)
	freq, cleanup, err := decodeRequest(httptest.NewRecorder(), req, nil, 0, t.TempDir())
	require.NoError(t, err)
	defer cleanup()
	assert.False(t, freq.Posted)
	assert.Equal(t, 0, freq.Values.Len())
}

func TestDecodeRequestTooLarge(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/form/x", strings.NewReader("name="+strings.Repeat("x", 100)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, cleanup, err := decodeRequest(httptest.NewRecorder(), req, nil, 10, t.TempDir())
	defer cleanup()
	assert.Error(t, err)
}

func TestDecodeMultipartKeepsLastFilePerField(t *testing.T) {
	dir := t.TempDir()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "Taro"))
	for _, content := range []string{"first", "second"} {
		fw, err := mw.CreateFormFile("att[]", content+".txt")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/form/x", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	freq, cleanup, err := decodeRequest(httptest.NewRecorder(), req, nil, 0, dir)
	require.NoError(t, err)

	require.Len(t, freq.Uploads, 1)
	f := freq.Uploads["att"]
	assert.Equal(t, "second.txt", f.Name)
	got, err := os.ReadFile(f.TempPath)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "replaced upload left on disk")

	cleanup()
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
