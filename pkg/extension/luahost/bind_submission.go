package luahost

import (
	"github.com/formmailer/formmailer/pkg/extension/event"
	lua "github.com/yuin/gopher-lua"
)

const submissionName = "submission"

func registerSubmissionType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(submissionName)
	ls.SetGlobal(submissionName, mt)

	ls.SetField(mt, "__index", ls.NewFunction(submissionIndex))
}

func wrapSubmission(ls *lua.LState, val *event.Submission) *lua.LUserData {
	return wrapUserData(ls, submissionName, val)
}

func checkSubmission(ls *lua.LState, pos int) *event.Submission {
	ud := ls.CheckUserData(pos)
	if v, ok := ud.Value.(*event.Submission); ok {
		return v
	}
	ls.ArgError(1, submissionName+" expected")
	return nil
}

// Gets a field value from Submission user object.  Submissions are read only.
//
// `sub.values` maps field names to their first value, `sub.fields` lists
// {name = ..., values = {...}} tables in submission order.
func submissionIndex(ls *lua.LState) int {
	s := checkSubmission(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "form":
		ls.Push(lua.LString(s.Form))
	case "fields":
		lt := ls.NewTable()
		for _, f := range s.Fields {
			entry := ls.NewTable()
			entry.RawSetString("name", lua.LString(f.Name))
			entry.RawSetString("values", stringsToLua(ls, f.Values))
			lt.Append(entry)
		}
		ls.Push(lt)
	case "values":
		lt := ls.NewTable()
		for _, f := range s.Fields {
			lt.RawSetString(f.Name, lua.LString(s.Value(f.Name)))
		}
		ls.Push(lt)
	case "recipients":
		ls.Push(stringsToLua(ls, s.Recipients))
	case "reply_to":
		ls.Push(lua.LString(s.ReplyTo))
	case "remote_addr":
		ls.Push(lua.LString(s.RemoteAddr))
	case "sent_at":
		ls.Push(lua.LNumber(s.SentAt.Unix()))
	default:
		// Unknown field.
		ls.Push(lua.LNil)
	}

	return 1
}
