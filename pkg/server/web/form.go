package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/formmailer/formmailer/pkg/flow"
	"github.com/formmailer/formmailer/pkg/session"
	"github.com/formmailer/formmailer/pkg/template"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding"
)

// ContentPlaceholder marks where the layout receives the rendered screen.
const ContentPlaceholder = "[+content+]"

// FormHandler serves the form screens.
type FormHandler struct {
	Processor *flow.Processor
	Sessions  *session.Manager
	// Layout wraps every rendered screen at ContentPlaceholder; empty serves screens bare.
	Layout         string
	MaxUploadBytes int64
	TmpDir         string
}

// SetupRoutes populates the routes for the form screens.
func SetupRoutes(r *mux.Router, fh *FormHandler) {
	r.Path("/form/{config}").Handler(http.HandlerFunc(fh.ServeForm)).
		Name("Form").Methods("GET", "POST")
	r.Path("/page/{id:[1-9][0-9]*}").Handler(http.HandlerFunc(fh.ServePage)).
		Name("Page").Methods("GET")
}

// ServeForm runs one step of the named form.
func (fh *FormHandler) ServeForm(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["config"]
	sess := fh.Sessions.Load(w, req)
	logger := log.With().Str("module", "web").Str("form", name).Str("session", sess.ID).Logger()

	cfg, err := fh.Processor.LoadConfig(name)
	if err != nil {
		logger.Warn().Err(err).Msg("Form configuration rejected")
		fh.render(w, http.StatusOK, nil, flow.ErrorHTML(err))
		return
	}
	enc := pageEncoding(cfg.Charset)

	freq, cleanup, err := decodeRequest(w, req, enc, fh.MaxUploadBytes, fh.TmpDir)
	defer cleanup()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to decode form post")
		fh.render(w, http.StatusBadRequest, enc, flow.SystemErrorHTML("Failed to read the submitted form"))
		return
	}
	if freq.Posted {
		expFormPosts.Add(1)
	}

	resp := fh.Processor.Process(req.Context(), cfg, sess, freq)
	logger.Debug().Str("state", resp.State.String()).Msg("Form step done")
	if resp.Redirect != "" {
		expRedirects.Add(1)
		http.Redirect(w, req, resp.Redirect, http.StatusSeeOther)
		return
	}
	fh.render(w, http.StatusOK, enc, resp.HTML)
}

// ServePage renders a numeric resource, the target of numeric complete redirects.
func (fh *FormHandler) ServePage(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	text, err := fh.Processor.Templates.Load(id)
	if err != nil {
		if errors.Is(err, template.ErrNotExist) {
			http.NotFound(w, req)
			return
		}
		log.Error().Str("module", "web").Str("page", id).Err(err).Msg("Failed to load page")
		http.Error(w, "Failed to load page", http.StatusInternalServerError)
		return
	}
	fh.render(w, http.StatusOK, nil, text)
}

func (fh *FormHandler) render(w http.ResponseWriter, status int, enc encoding.Encoding,
	content string) {
	h := w.Header()
	h.Set("Content-Type", "text/html; charset="+charsetName(enc))
	h.Set("Cache-Control", "no-store")
	// Ensure we do not allow click jacking.
	h.Set("X-Frame-Options", "SameOrigin")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(encodePage(enc, Wrap(fh.Layout, content)))); err != nil {
		log.Debug().Str("module", "web").Err(err).Msg("Failed to write response")
	}
}

// Wrap places content into layout.
func Wrap(layout, content string) string {
	if layout == "" || !strings.Contains(layout, ContentPlaceholder) {
		return content
	}
	return strings.Replace(layout, ContentPlaceholder, content, 1)
}
