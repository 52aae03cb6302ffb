package test

import (
	"strings"
	"testing"
	"time"

	"github.com/cosmotek/loguago"
	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

// LuaInit defines assertion helpers for scripts under test.  With `async = true` failures are
// logged and recorded in `test_ok` so a listener can report them over a channel; otherwise they
// raise a Lua error.
const LuaInit = `
	local logger = require("logger")

	async = false
	test_ok = true

	function fail(message)
		if async then
			logger.error(message, {from = "luainit"})
			test_ok = false
		else
			error(message, 2)
		end
	end

	-- Compares strings, numbers and list tables such as multi-value fields.
	function assert_eq(got, want)
		if type(got) == "table" and type(want) == "table" then
			if #got ~= #want then
				fail(string.format("got %d values, wanted %d", #got, #want))
				return
			end
			for i = 1, #want do
				assert_eq(got[i], want[i])
			end
			return
		end
		if got ~= want then
			fail(string.format("got %q, wanted %q", tostring(got), tostring(want)))
		end
	end

	function assert_contains(got, want)
		if not string.find(got, want, 1, true) then
			fail(string.format("got %q, wanted it to contain %q", got, want))
		end
	end

	-- Checks every key of want against the named-value table got, e.g. sub.values.
	function assert_fields(got, want)
		for k, v in pairs(want) do
			assert_eq(got[k], v)
		end
	end
`

// NewLuaState returns an LState with the logger module, each setup applied (userdata types,
// globals) and LuaInit loaded.  Log output from scripts goes to the returned builder.
func NewLuaState(setup ...func(*lua.LState)) (*lua.LState, *strings.Builder) {
	output := &strings.Builder{}
	ls := lua.NewState()
	ls.PreloadModule("logger", loguago.NewLogger(zerolog.New(output)).Loader)
	for _, fn := range setup {
		fn(ls)
	}
	if err := ls.DoString(LuaInit); err != nil {
		panic(err)
	}
	return ls, output
}

// AssertNotified waits for a listener to report over notify; a false value means a Lua side
// assertion failed.
func AssertNotified(t *testing.T, notify chan lua.LValue) {
	t.Helper()
	select {
	case lv := <-notify:
		if lua.LVIsFalse(lv) {
			t.Error("Lua listener reported failed assertions")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Lua listener did not report within timeout")
	}
}
