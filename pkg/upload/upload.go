// Package upload stages files posted through form file controls between the confirm and send
// steps.
package upload

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionKey is the session key holding the Records of the current flow.
const SessionKey = "_cf_uploaded"

// File is a file received with the current request.
type File struct {
	Field       string
	Name        string // client supplied file name
	TempPath    string
	ContentType string // client supplied content type
	Size        int64
}

// Record is a staged upload kept between the confirm and send steps.
type Record struct {
	Path string
	Mime string
	Name string
}

// Records maps field names to staged uploads.
type Records map[string]Record

// Lookup implements dotted-path session reads such as "_cf_uploaded.photo".
func (r Records) Lookup(field string) (any, bool) {
	rec, ok := r[field]
	return rec, ok
}

// Info describes the content of a file.
type Info struct {
	Mime  string
	Token string
}

// IsImage returns true if the file is an image.
func (i Info) IsImage() bool {
	return strings.HasPrefix(i.Mime, "image/")
}

// Inspector resolves the type of a file on disk.
type Inspector interface {
	Inspect(path string) (Info, error)
}

var typeTokens = map[string]string{
	"image/gif":          "gif",
	"image/jpeg":         "jpg",
	"image/pjpeg":        "jpg",
	"image/png":          "png",
	"application/pdf":    "pdf",
	"text/plain":         "txt",
	"text/html":          "html",
	"application/msword": "word",
}

// TypeToken maps a MIME type to its short type token, or "" when unknown.
func TypeToken(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return typeTokens[strings.ToLower(strings.TrimSpace(mime))]
}

// Sniffer inspects files by their leading bytes.
type Sniffer struct{}

// Inspect implements Inspector.
func (Sniffer) Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Info{}, err
	}
	mime := http.DetectContentType(head[:n])
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return Info{Mime: mime, Token: TypeToken(mime)}, nil
}

// Resolve inspects an uploaded file. Non-image content falls back to the client supplied type,
// since sniffing is only reliable for images.
func Resolve(ins Inspector, f File) Info {
	info, err := ins.Inspect(f.TempPath)
	if err != nil {
		log.Debug().Str("module", "upload").Str("field", f.Field).Err(err).
			Msg("Inspect failed, using client content type")
		info = Info{}
	}
	if !info.IsImage() && f.ContentType != "" {
		info.Mime = f.ContentType
		info.Token = TypeToken(f.ContentType)
	}
	return info
}

// Manager moves uploads into the staging directory and removes them.
type Manager struct {
	Dir       string
	Inspector Inspector
}

// NewManager creates the staging directory if needed.
func NewManager(dir string, ins Inspector) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("upload dir %q: %w", dir, err)
	}
	return &Manager{Dir: dir, Inspector: ins}, nil
}

// Stage moves an uploaded file into the staging directory. Images get their type token as the
// file extension.
func (m *Manager) Stage(f File) (Record, error) {
	info := Resolve(m.Inspector, f)
	name := uuid.NewString()
	if info.IsImage() && info.Token != "" {
		name += "." + info.Token
	}
	dst := filepath.Join(m.Dir, name)
	if err := move(f.TempPath, dst); err != nil {
		return Record{}, fmt.Errorf("stage %q: %w", f.Field, err)
	}
	log.Debug().Str("module", "upload").Str("field", f.Field).Str("path", dst).
		Str("mime", info.Mime).Msg("Staged upload")
	return Record{Path: dst, Mime: info.Mime, Name: f.Name}, nil
}

// Remove deletes the files of all records, ignoring ones already gone.
func (m *Manager) Remove(records Records) {
	for field, rec := range records {
		if err := os.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("module", "upload").Str("field", field).Err(err).
				Msg("Failed to remove staged upload")
		}
	}
}

func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Rename fails across devices; fall back to copy.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
