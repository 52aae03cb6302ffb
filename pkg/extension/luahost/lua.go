// Package luahost loads a Lua script that extends the form mailer with
// validators, filters, modifiers and event listeners.
package luahost

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/extension"
	"github.com/formmailer/formmailer/pkg/extension/event"
	"github.com/formmailer/formmailer/pkg/form"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// MsgInvalid is reported when a Lua validator returns false.
const MsgInvalid = "Invalid input"

const listenerName = "lua"

// Host of Lua extensions.
type Host struct {
	Functions  []string // Functions detected in lua script.
	extHost    *extension.Host
	pool       *statePool
	logContext zerolog.Context
}

// New constructs a new Lua Host, pre-compiling the source.
func New(conf config.Lua, extHost *extension.Host) (*Host, error) {
	scriptPath := conf.Path
	if scriptPath == "" {
		return nil, nil
	}

	logContext := log.With().Str("module", "lua")
	logger := logContext.Str("phase", "startup").Str("path", scriptPath).Logger()

	// Pre-load, parse, and compile script.
	if fi, err := os.Stat(scriptPath); err != nil {
		logger.Info().Msg("Script file not found")
		return nil, nil
	} else if fi.IsDir() {
		return nil, fmt.Errorf("Lua script %v is a directory", scriptPath)
	}

	logger.Info().Msg("Loading script")
	file, err := os.Open(scriptPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return NewFromReader(logContext.Logger(), extHost, bufio.NewReader(file), scriptPath)
}

// NewFromReader constructs a new Lua Host, loading Lua source from the provided reader.
// The provided path is used in logging and error messages.  Functions the script defines on the
// formmailer global are registered with extHost.
func NewFromReader(logger zerolog.Logger, extHost *extension.Host, r io.Reader, path string) (*Host, error) {
	// Pre-parse, and compile script.
	chunk, err := parse.Parse(r, path)
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, err
	}

	// Build the pool and confirm LState is retrievable.
	pool := newStatePool(logger, proto)
	h := &Host{extHost: extHost, pool: pool, logContext: log.With().Str("module", "lua")}
	ls, err := pool.getState()
	if err != nil {
		return nil, err
	}
	defer pool.putState(ls)

	fm, err := getFormMailer(ls)
	if err != nil {
		return nil, err
	}
	h.wireFunctions(fm)

	return h, nil
}

// CreateChannel creates a channel and places it into the named global variable
// in newly created LStates.
func (h *Host) CreateChannel(name string) chan lua.LValue {
	return h.pool.createChannel(name)
}

// wireFunctions registers the script's functions with the extension host.
func (h *Host) wireFunctions(fm *FormMailer) {
	if h.extHost == nil {
		return
	}
	for _, name := range fm.Validators.Names() {
		h.extHost.Validators.Register(name, h.validator(name))
		h.Functions = append(h.Functions, "validator."+name)
	}
	for _, name := range fm.Filters.Names() {
		h.extHost.Filters.Register(name, h.filter(name))
		h.Functions = append(h.Functions, "filter."+name)
	}
	for _, name := range fm.Modifiers.Names() {
		h.extHost.Modifiers.Register(name, h.modifier(name))
		h.Functions = append(h.Functions, "modifier."+name)
	}
	if fm.Before.MailSent != nil {
		h.extHost.Events.BeforeMailSent.AddListener(listenerName, h.handleBeforeMailSent)
		h.Functions = append(h.Functions, "before.mail_sent")
	}
	if fm.After.SubmissionSent != nil {
		h.extHost.Events.AfterSubmissionSent.AddListener(listenerName, h.handleAfterSubmissionSent)
		h.Functions = append(h.Functions, "after.submission_sent")
	}
	log.Info().Str("module", "lua").Str("phase", "startup").Strs("functions", h.Functions).
		Msg("Registered Lua functions")
}

// call runs the function selected by pick on a pooled LState and returns its first result.
// ok is false when the function is missing or failed.
func (h *Host) call(logger *zerolog.Logger, pick func(*FormMailer) *lua.LFunction,
	args func(*lua.LState) []lua.LValue) (result lua.LValue, ok bool) {
	ls, err := h.pool.getState()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get Lua state instance from pool")
		return lua.LNil, false
	}
	defer h.pool.putState(ls)

	fm, err := getFormMailer(ls)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get formmailer object")
		return lua.LNil, false
	}
	fn := pick(fm)
	if fn == nil {
		return lua.LNil, false
	}

	if err := ls.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args(ls)...); err != nil {
		logger.Error().Err(err).Msg("Failed to call Lua function")
		return lua.LNil, false
	}
	result = ls.Get(-1)
	ls.Pop(1)
	return result, true
}

// validator adapts formmailer.validator[name]. The function passes by returning nil or true,
// and fails by returning false or an error message.
func (h *Host) validator(name string) extension.Validator {
	logger := h.logContext.Str("validator", name).Logger()
	pick := func(fm *FormMailer) *lua.LFunction { return fm.Validators.Func(name) }
	return func(value form.Value, param string) error {
		lv, ok := h.call(&logger, pick, func(ls *lua.LState) []lua.LValue {
			return []lua.LValue{valueToLua(ls, value), lua.LString(param)}
		})
		if !ok {
			return nil
		}
		switch ret := lv.(type) {
		case lua.LBool:
			if !bool(ret) {
				return errors.New(MsgInvalid)
			}
		case lua.LString:
			if ret != "" {
				return errors.New(string(ret))
			}
		}
		return nil
	}
}

// filter adapts formmailer.filter[name]. The value is passed through when the function fails.
func (h *Host) filter(name string) extension.Filter {
	logger := h.logContext.Str("filter", name).Logger()
	pick := func(fm *FormMailer) *lua.LFunction { return fm.Filters.Func(name) }
	return func(value form.Value, param string) string {
		lv, ok := h.call(&logger, pick, func(ls *lua.LState) []lua.LValue {
			return []lua.LValue{valueToLua(ls, value), lua.LString(param)}
		})
		if s, isText := luaToString(lv); ok && isText {
			return s
		}
		return value.String()
	}
}

// modifier adapts formmailer.modifier[name].
func (h *Host) modifier(name string) extension.Modifier {
	logger := h.logContext.Str("modifier", name).Logger()
	pick := func(fm *FormMailer) *lua.LFunction { return fm.Modifiers.Func(name) }
	return func(value, param string) string {
		lv, ok := h.call(&logger, pick, func(*lua.LState) []lua.LValue {
			return []lua.LValue{lua.LString(value), lua.LString(param)}
		})
		if s, isText := luaToString(lv); ok && isText {
			return s
		}
		return value
	}
}

func (h *Host) handleBeforeMailSent(mail event.OutboundMail) *event.MailVerdict {
	logger := h.logContext.Str("event", "before.mail_sent").Logger()
	lv, ok := h.call(&logger,
		func(fm *FormMailer) *lua.LFunction { return fm.Before.MailSent },
		func(ls *lua.LState) []lua.LValue { return []lua.LValue{wrapOutboundMail(ls, &mail)} })
	if !ok || lv == lua.LNil {
		return nil
	}
	verdict, err := unwrapMailVerdict(lv)
	if err != nil {
		logger.Error().Err(err).Msg("Bad response from Lua Function")
		return nil
	}
	return verdict
}

func (h *Host) handleAfterSubmissionSent(sub event.Submission) {
	logger := h.logContext.Str("event", "after.submission_sent").Logger()
	h.call(&logger,
		func(fm *FormMailer) *lua.LFunction { return fm.After.SubmissionSent },
		func(ls *lua.LState) []lua.LValue { return []lua.LValue{wrapSubmission(ls, &sub)} })
}
