package luahost

import (
	"fmt"

	"github.com/formmailer/formmailer/pkg/extension/event"
	lua "github.com/yuin/gopher-lua"
)

const (
	outboundMailName = "outbound_mail"
	mailVerdictName  = "mail"
)

func registerOutboundMailType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(outboundMailName)
	ls.SetGlobal(outboundMailName, mt)

	ls.SetField(mt, "__index", ls.NewFunction(outboundMailIndex))
}

func wrapOutboundMail(ls *lua.LState, val *event.OutboundMail) *lua.LUserData {
	return wrapUserData(ls, outboundMailName, val)
}

func checkOutboundMail(ls *lua.LState, pos int) *event.OutboundMail {
	ud := ls.CheckUserData(pos)
	if v, ok := ud.Value.(*event.OutboundMail); ok {
		return v
	}
	ls.ArgError(1, outboundMailName+" expected")
	return nil
}

func outboundMailIndex(ls *lua.LState) int {
	m := checkOutboundMail(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "form":
		ls.Push(lua.LString(m.Form))
	case "kind":
		ls.Push(lua.LString(m.Kind))
	case "to":
		ls.Push(stringsToLua(ls, m.To))
	case "from":
		ls.Push(lua.LString(m.From))
	case "subject":
		ls.Push(lua.LString(m.Subject))
	case "body":
		ls.Push(lua.LString(m.Body))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// registerMailVerdictType exposes mail.allow() and mail.deny(reason) for
// formmailer.before.mail_sent.  Returning nil defers to other listeners.
func registerMailVerdictType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(mailVerdictName)
	ls.SetGlobal(mailVerdictName, mt)

	// Static attributes.
	ls.SetField(mt, "allow", ls.NewFunction(newMailVerdict(false)))
	ls.SetField(mt, "deny", ls.NewFunction(newMailVerdict(true)))
}

func newMailVerdict(deny bool) func(*lua.LState) int {
	return func(ls *lua.LState) int {
		val := &event.MailVerdict{Deny: deny}
		if deny {
			val.Reason = ls.OptString(1, "Mail denied by policy")
		}
		ls.Push(wrapUserData(ls, mailVerdictName, val))
		return 1
	}
}

func unwrapMailVerdict(lv lua.LValue) (*event.MailVerdict, error) {
	if ud, ok := lv.(*lua.LUserData); ok {
		if v, ok := ud.Value.(*event.MailVerdict); ok {
			return v, nil
		}
	}

	return nil, fmt.Errorf("expected MailVerdict, got %q", lv.Type().String())
}
