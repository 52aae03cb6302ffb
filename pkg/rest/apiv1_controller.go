package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/formmailer/formmailer/pkg/rest/model"
	"github.com/formmailer/formmailer/pkg/server/web"
	"github.com/formmailer/formmailer/pkg/storage"
	"github.com/formmailer/formmailer/pkg/stringutil"
	"github.com/rs/zerolog/log"
)

// FormSubmissionsV1 renders the stored submissions of a form, oldest first
func FormSubmissionsV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	// Don't have to validate these aren't empty, Gorilla returns 404
	name, err := stringutil.ParseFormName(ctx.Vars["form"])
	if err != nil {
		return err
	}
	subs, err := ctx.Store.ListForm(name)
	if err != nil {
		// This doesn't indicate empty, likely an IO error
		return fmt.Errorf("failed to get submissions for %v: %w", name, err)
	}
	log.Debug().Str("module", "rest").Str("form", name).Int("count", len(subs)).
		Msg("Listed submissions")

	jsubs := make([]*model.JSONSubmissionHeaderV1, len(subs))
	for i, sub := range subs {
		jsubs[i] = &model.JSONSubmissionHeaderV1{
			ID:      sub.ID,
			Form:    sub.Form,
			Created: sub.Created,
			Fields:  len(sub.Fields),
		}
	}
	return web.RenderJSON(w, jsubs)
}

// SubmissionShowV1 renders a particular submission with its fields
func SubmissionShowV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	id := ctx.Vars["id"]
	sub, err := ctx.Store.Get(id)
	if errors.Is(err, storage.ErrNotExist) {
		http.NotFound(w, req)
		return nil
	}
	if err != nil {
		return fmt.Errorf("Get(%q) failed: %w", id, err)
	}

	fields := make([]*model.JSONFieldV1, len(sub.Fields))
	for i, f := range sub.Fields {
		fields[i] = &model.JSONFieldV1{Name: f.Name, Value: f.Value}
	}
	return web.RenderJSON(w,
		&model.JSONSubmissionV1{
			ID:      sub.ID,
			Form:    sub.Form,
			Created: sub.Created,
			Fields:  fields,
		})
}

// SubmissionDeleteV1 removes a particular submission
func SubmissionDeleteV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	id := ctx.Vars["id"]
	err = ctx.Store.Remove(id)
	if errors.Is(err, storage.ErrNotExist) {
		http.NotFound(w, req)
		return nil
	}
	if err != nil {
		// This doesn't indicate missing, likely an IO error
		return fmt.Errorf("Remove(%q) failed: %w", id, err)
	}
	log.Debug().Str("module", "rest").Str("id", id).Msg("Removed submission")

	return web.RenderJSON(w, "OK")
}
