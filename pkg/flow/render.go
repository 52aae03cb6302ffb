package flow

import (
	"regexp"
	"sort"
	"strings"

	"github.com/formmailer/formmailer/pkg/form"
	"github.com/formmailer/formmailer/pkg/placeholder"
	"github.com/formmailer/formmailer/pkg/stringutil"
	"github.com/formmailer/formmailer/pkg/upload"
)

var resourceID = regexp.MustCompile(`^[1-9][0-9]*$`)

// finish removes leftover error blocks and placeholders, then marks the next mode.
func finish(text, mode string) string {
	text = placeholder.Clear(form.StripErrorBlocks(text))
	if mode == "" {
		return text
	}
	return form.AddModeMarker(text, mode)
}

// inputTemplate loads the input screen with the CAPTCHA url filled in and the validation
// attributes removed.
func (r *run) inputTemplate() (string, error) {
	text, err := r.load(r.cfg.TmplInput)
	if err != nil {
		return "", err
	}
	if r.cfg.Vericode {
		text = r.eng.Replace(text, placeholder.Strings(map[string]string{
			"verimageurl": r.cfg.CaptchaURL,
		}), placeholder.DefaultJoin)
	}
	return form.StripDirectives(text), nil
}

func (r *run) renderInput() (*Response, error) {
	text, err := r.inputTemplate()
	if err != nil {
		return nil, err
	}
	if v, ok := r.sess.Get(AutosaveKey); ok {
		if saved, ok := v.(*form.Values); ok {
			text = form.Restore(text, saved)
		}
	}
	return &Response{State: StateInput, HTML: finish(text, form.ModeConfirm)}, nil
}

func (r *run) renderErrors(errs *form.Errors) (*Response, error) {
	text, err := r.inputTemplate()
	if err != nil {
		return nil, err
	}
	if r.cfg.Autosave {
		r.sess.Set(AutosaveKey, r.req.Values.Clone())
	}
	text = form.ApplyErrorBlocks(text, errs)
	text = form.AssignErrorClass(text, errs, r.cfg.InvalidClass)
	text = r.eng.Replace(text, errs.Placeholders(), placeholder.DefaultJoin)
	text = form.Restore(text, r.req.Values)
	return &Response{State: StateInput, HTML: finish(text, form.ModeConfirm)}, nil
}

// renderReturn redisplays the input screen with the submitted values and discards staged
// uploads, which the visitor has to choose again.
func (r *run) renderReturn() (*Response, error) {
	text, err := r.inputTemplate()
	if err != nil {
		return nil, err
	}
	text = form.Restore(text, r.req.Values)
	r.discardStaged()
	return &Response{State: StateReturn, HTML: finish(text, form.ModeConfirm)}, nil
}

func (r *run) discardStaged() {
	records := stagedRecords(r.sess)
	if len(records) == 0 {
		return
	}
	if r.p.Uploads != nil {
		r.p.Uploads.Remove(records)
	}
	r.sess.Delete(upload.SessionKey)
}

func (r *run) renderConfirm() (*Response, error) {
	text, err := r.load(r.cfg.TmplConf)
	if err != nil {
		return nil, err
	}
	if r.cfg.Autosave {
		r.sess.Set(AutosaveKey, r.req.Values.Clone())
	}

	ph := make(map[string]form.Value)
	for _, name := range r.req.Values.Keys() {
		ph[name] = r.req.Values.Value(name).Map(func(s string) string {
			if s == "" {
				return placeholder.Blank
			}
			return stringutil.EncodeHTML(s, true)
		})
	}
	if r.cfg.AutoReply {
		addr, err := r.addressing().ReplyAddress(r.req.Values)
		if err != nil {
			return nil, &ConfigError{Problems: []string{err.Error()}}
		}
		ph["reply_to"] = form.Scalar(addr)
	}
	for k, v := range r.stageUploads() {
		ph[k] = v
	}

	text = r.eng.Replace(text, ph, placeholder.DefaultJoin)
	text = form.AddHiddenTags(text, r.req.Values)
	token := r.p.token()
	r.sess.Set(TokenKey, token)
	text = form.AddToken(text, token)
	return &Response{State: StateConfirm, HTML: finish(text, form.ModeSend)}, nil
}

// stageUploads moves this request's uploads into the staging directory, replacing any staged
// earlier, and returns their placeholders.
func (r *run) stageUploads() map[string]form.Value {
	ph := make(map[string]form.Value)
	if len(r.req.Uploads) == 0 {
		return ph
	}
	if r.p.Uploads == nil {
		r.log.Warn().Msg("Uploads received but no upload directory is configured")
		return ph
	}
	r.discardStaged()

	fields := make([]string, 0, len(r.req.Uploads))
	for field := range r.req.Uploads {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	records := make(upload.Records)
	for _, field := range fields {
		f := r.req.Uploads[field]
		if f.TempPath == "" {
			continue
		}
		rec, err := r.p.Uploads.Stage(f)
		if err != nil {
			r.log.Error().Str("field", field).Err(err).Msg("Failed to stage upload")
			continue
		}
		records[field] = rec
		name := form.Scalar(stringutil.EncodeHTML(f.Name, false))
		typ := form.Scalar(strings.ToUpper(upload.TypeToken(rec.Mime)))
		if strings.HasPrefix(rec.Mime, "image/") {
			ph[field+".imagename"] = name
			ph[field+".imagetype"] = typ
		} else {
			ph[field+".filename"] = name
			ph[field+".filetype"] = typ
		}
	}
	if len(records) > 0 {
		r.sess.Set(upload.SessionKey, records)
	}
	return ph
}

func (r *run) complete() (*Response, error) {
	if target := r.cfg.CompleteRedirect; target != "" {
		if resourceID.MatchString(target) {
			target = r.p.resourceURL(target)
		}
		return &Response{State: StateComplete, Redirect: target}, nil
	}
	text, err := r.load(r.cfg.TmplComp)
	if err != nil {
		return nil, err
	}
	ph := make(map[string]form.Value)
	for _, name := range r.req.Values.Keys() {
		ph[name] = r.req.Values.Value(name).Map(func(s string) string {
			return stringutil.EncodeHTML(s, false)
		})
	}
	text = r.eng.Replace(text, ph, placeholder.DefaultJoin)
	return &Response{State: StateComplete, HTML: finish(text, "")}, nil
}
