package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/formmailer/formmailer/pkg/flow"
	"github.com/formmailer/formmailer/pkg/form"
	"github.com/formmailer/formmailer/pkg/upload"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding"
)

// maxValueBytes caps a single non-file multipart value.
const maxValueBytes = 1 << 20

// decodeRequest turns a request into a flow.Request.  Posted fields keep their submission order
// and are converted from enc when set.  Uploaded files are written to dir; the returned cleanup
// removes the ones the flow did not take over and must always be called.
func decodeRequest(w http.ResponseWriter, req *http.Request, enc encoding.Encoding, maxBytes int64,
	dir string) (*flow.Request, func(), error) {
	freq := &flow.Request{
		Values:     form.NewValues(),
		RemoteAddr: remoteIP(req),
		UserAgent:  req.UserAgent(),
	}
	cleanup := func() {}
	if req.Method != http.MethodPost {
		return freq, cleanup, nil
	}
	if maxBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, maxBytes)
	}

	var pairs []form.Pair
	var err error
	mediaType, params, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		pairs, freq.Uploads, err = decodeMultipart(req.Body, params["boundary"], dir)
		cleanup = func() { removeUploads(freq.Uploads) }
	} else {
		pairs, err = decodeURLEncoded(req.Body)
	}
	if err != nil {
		return nil, cleanup, err
	}
	pairs = decodePairs(enc, pairs)

	for _, p := range pairs {
		switch p.Name {
		case form.ModeField:
			freq.Mode = p.Value
		case form.TokenField:
			freq.Token = p.Value
		case form.ReturnFlag:
			freq.Return = true
		}
	}
	freq.Values = form.Sanitize(pairs)
	freq.Posted = len(pairs) > 0 || len(freq.Uploads) > 0
	return freq, cleanup, nil
}

// decodeURLEncoded parses an application/x-www-form-urlencoded body in order.
func decodeURLEncoded(r io.Reader) ([]form.Pair, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var pairs []form.Pair
	for _, part := range strings.Split(string(body), "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		name, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("field name %q: %w", k, err)
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		pairs = append(pairs, form.Pair{Name: name, Value: value})
	}
	return pairs, nil
}

// decodeMultipart parses a multipart/form-data body in order.  File inputs left empty by the
// visitor are skipped.
func decodeMultipart(r io.Reader, boundary, dir string) (
	pairs []form.Pair, uploads map[string]upload.File, err error) {
	if boundary == "" {
		return nil, nil, errors.New("multipart boundary missing")
	}
	uploads = make(map[string]upload.File)
	defer func() {
		if err != nil {
			removeUploads(uploads)
			uploads = nil
		}
	}()

	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return pairs, uploads, nil
		}
		if err != nil {
			return nil, uploads, err
		}
		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}
		if _, params, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition")); !hasKey(params, "filename") {
			b, err := io.ReadAll(io.LimitReader(part, maxValueBytes))
			part.Close()
			if err != nil {
				return nil, uploads, err
			}
			pairs = append(pairs, form.Pair{Name: name, Value: string(b)})
			continue
		}
		if part.FileName() == "" {
			part.Close()
			continue
		}
		f, err := saveUpload(part, strings.TrimSuffix(name, "[]"), dir)
		part.Close()
		if err != nil {
			return nil, uploads, err
		}
		if prev, ok := uploads[f.Field]; ok {
			// One file per field; the last one posted wins.
			removeUploads(map[string]upload.File{prev.Field: prev})
		}
		uploads[f.Field] = f
	}
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

func saveUpload(part *multipart.Part, field, dir string) (upload.File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return upload.File{}, err
	}
	tmp, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return upload.File{}, err
	}
	n, err := io.Copy(tmp, part)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return upload.File{}, fmt.Errorf("upload %q: %w", field, err)
	}
	return upload.File{
		Field:       field,
		Name:        part.FileName(),
		TempPath:    tmp.Name(),
		ContentType: part.Header.Get("Content-Type"),
		Size:        n,
	}, nil
}

// removeUploads deletes temp files still in place; staged files were already moved away.
func removeUploads(uploads map[string]upload.File) {
	for field, f := range uploads {
		if err := os.Remove(f.TempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("module", "web").Str("field", field).Err(err).
				Msg("Failed to remove upload temp file")
		}
	}
}

func remoteIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
