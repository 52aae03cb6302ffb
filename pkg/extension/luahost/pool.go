package luahost

import (
	"net/http"
	"sync"

	"github.com/cjoudrey/gluahttp"
	"github.com/cosmotek/loguago"
	json "github.com/inbucket/gopher-json"
	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

// maxIdleStates bounds the number of pooled LStates kept between requests.  Form handling is
// bursty; states beyond the bound are closed when returned.
const maxIdleStates = 8

// typeRegistrars install the userdata types scripts can receive, before the script runs.
var typeRegistrars = []func(*lua.LState){
	registerFormMailerTypes,
	registerMailVerdictType,
	registerOutboundMailType,
	registerSubmissionType,
}

type statePool struct {
	sync.Mutex
	funcProto *lua.FunctionProto         // Compiled script.
	states    []*lua.LState              // Idle LStates.
	channels  map[string]chan lua.LValue // Global interop channels.
	logger    zerolog.Logger             // Logger exported to scripts.
	maxIdle   int
}

func newStatePool(logger zerolog.Logger, funcProto *lua.FunctionProto) *statePool {
	return &statePool{
		funcProto: funcProto,
		channels:  make(map[string]chan lua.LValue),
		logger:    logger,
		maxIdle:   maxIdleStates,
	}
}

// preloadModules makes http, json and logger available to require().
func (lp *statePool) preloadModules(ls *lua.LState) {
	ls.PreloadModule("http", gluahttp.NewHttpModule(&http.Client{}).Loader)
	ls.PreloadModule("json", json.Loader)
	ls.PreloadModule("logger", loguago.NewLogger(lp.logger).Loader)
}

// newState creates an LState, installs modules, channels and types, then runs the script so
// it can fill the formmailer global.  Lock must be held.
func (lp *statePool) newState() (*lua.LState, error) {
	ls := lua.NewState()
	lp.preloadModules(ls)
	for name, ch := range lp.channels {
		ls.SetGlobal(name, lua.LChannel(ch))
	}
	for _, register := range typeRegistrars {
		register(ls)
	}

	ls.Push(ls.NewFunctionFromProto(lp.funcProto))
	if err := ls.PCall(0, lua.MultRet, nil); err != nil {
		ls.Close()
		return nil, err
	}
	return ls, nil
}

// getState returns an idle LState, or creates one.
func (lp *statePool) getState() (*lua.LState, error) {
	lp.Lock()
	defer lp.Unlock()

	n := len(lp.states)
	if n == 0 {
		return lp.newState()
	}
	ls := lp.states[n-1]
	lp.states = lp.states[:n-1]
	return ls, nil
}

// putState returns an LState to the pool with an empty stack.  Closed states are dropped and
// states past maxIdle are closed.
func (lp *statePool) putState(ls *lua.LState) {
	if ls.IsClosed() {
		return
	}
	ls.Pop(ls.GetTop())

	lp.Lock()
	defer lp.Unlock()

	if len(lp.states) >= lp.maxIdle {
		ls.Close()
		return
	}
	lp.states = append(lp.states, ls)
}

// createChannel makes a buffered channel available as a global in new LStates and closes the
// idle ones so the next getState sees it.  States checked out at the time keep running without
// the global.
func (lp *statePool) createChannel(name string) chan lua.LValue {
	lp.Lock()
	defer lp.Unlock()

	ch := make(chan lua.LValue, 10)
	lp.channels[name] = ch
	for _, ls := range lp.states {
		ls.Close()
	}
	lp.states = lp.states[:0]
	return ch
}
