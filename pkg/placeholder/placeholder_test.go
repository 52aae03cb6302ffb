package placeholder_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/formmailer/formmailer/pkg/extension"
	"github.com/formmailer/formmailer/pkg/form"
	"github.com/formmailer/formmailer/pkg/placeholder"
)

func sampleValues() map[string]form.Value {
	return map[string]form.Value{
		"name":   form.Scalar("Jane"),
		"colors": form.List("red", "blue"),
		"price":  form.Scalar("1234567.5"),
		"empty":  form.Scalar(""),
		"date":   form.Scalar("2024-03-05 14:07:09"),
		"blank":  form.Scalar(placeholder.Blank),
		"word":   form.Scalar("xyz"),
	}
}

func TestReplace(t *testing.T) {
	engine := placeholder.NewEngine(nil)
	testCases := []struct {
		name, input, want string
	}{
		{"no tokens", "plain text [ + ]", "plain text [ + ]"},
		{"scalar", "Hi [+name+]!", "Hi Jane!"},
		{"unknown left alone", "[+missing+] [+name+]", "[+missing+] Jane"},
		{"list default join", "[+colors+]", "red<br/>blue"},
		{"empty filter name joins", "[+colors|+]", "red<br/>blue"},
		{"implode", "[+colors|implode(, )+]", "red, blue"},
		{"implode newline", `[+colors|implode(\n)+]`, "red\nblue"},
		{"implode scalar", "[+name|implode(,)+]", "Jane"},
		{"implodetag", "[+colors|implodetag(li)+]", "<li>red</li><li>blue</li>"},
		{"implodetag scalar", "[+name|implodetag(b)+]", "<b>Jane</b>"},
		{"num", "[+price|num+]", "1,234,568"},
		{"num not numeric", "[+name|num+]", "Jane"},
		{"sprintf string", "[+name|sprintf(<%s>)+]", "<Jane>"},
		{"sprintf float", "[+price|sprintf(%.1f)+]", "1234567.5"},
		{"sprintf int", "[+price|sprintf(%05d)+]", "1234567"},
		{"sprintf list", "[+colors|sprintf([%s])+]", "[red]<br/>[blue]"},
		{"dateformat native", "[+date|dateformat(Y/m/d H:i)+]", "2024/03/05 14:07"},
		{"dateformat strftime", "[+date|dateformat(%Y-%m-%d %H:%M:%S)+]", "2024-03-05 14:07:09"},
		{"dateformat names", "[+date|dateformat(D, j M Y)+]", "Tue, 5 Mar 2024"},
		{"dateformat unparseable", "[+word|dateformat(Y)+]", "xyz"},
		{"unknown filter", "[+name|nosuch+]", ""},
		{"name with line break is another name", "[+name\n+]", "[+name\n+]"},
		{"modifier", "[+name:ucase+]", "JANE"},
		{"modifier chain", "[+name:limit=`2`:ucase+]", "JA"},
		{"modifier then filter", "[+name:lcase|implodetag(i)+]", "<i>jane</i>"},
		{"modifier empty becomes blank", "[+empty:ucase+]", "&nbsp;"},
		{"modifier blank in", "[+blank:default=`n/a`+]", "n/a"},
		{"modifier unknown key", "[+missing:ucase+]", "[+missing:ucase+]"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, engine.Replace(tc.input, sampleValues(), placeholder.DefaultJoin))
		})
	}
}

func TestReplaceWithoutModifiers(t *testing.T) {
	engine := placeholder.NewEngine(nil)
	engine.Modifiers = false
	values := map[string]form.Value{"a:b": form.Scalar("colon")}
	assert.Equal(t, "colon", engine.Replace("[+a:b+]", values, "\n"))
}

func TestReplaceUsesExtensions(t *testing.T) {
	host := extension.NewHost()
	host.Filters.Register("count", func(v form.Value, param string) string {
		return param + ":" + string(rune('0'+len(v.Strings())))
	})
	host.Modifiers.Register("stars", func(s, _ string) string { return "*" + s + "*" })
	engine := placeholder.NewEngine(host)

	assert.Equal(t, "n:2", engine.Replace("[+colors|count(n)+]", sampleValues(), "\n"))
	assert.Equal(t, "*Jane*", engine.Replace("[+name:stars+]", sampleValues(), "\n"))
	assert.Equal(t, "Jane", engine.Replace("[+name:nosuch+]", sampleValues(), "\n"))
}

func TestReplaceIsNoOpWithoutTokens(t *testing.T) {
	engine := placeholder.NewEngine(nil)
	text := "<p>[no tokens here] + ]</p>"
	assert.Equal(t, text, engine.Replace(text, sampleValues(), "\n"))
}

func TestClear(t *testing.T) {
	text := "a[+x+]b[+y|num+]c[+\nz\n+]d"
	once := placeholder.Clear(text)
	assert.Equal(t, "abcd", once)
	assert.Equal(t, once, placeholder.Clear(once))
}

func TestMerge(t *testing.T) {
	merged := placeholder.Merge(
		map[string]form.Value{"a": form.Scalar("first")},
		placeholder.Strings(map[string]string{"a": "second", "b": "b"}),
	)
	assert.Equal(t, form.Scalar("first"), merged["a"])
	assert.Equal(t, form.Scalar("b"), merged["b"])
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, time.February, 29, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, "2024-02-29 09:05:03", placeholder.FormatDate(ts, "Y-m-d H:i:s"))
	assert.Equal(t, "Thursday 29 February, 9:05 am", placeholder.FormatDate(ts, "l j F, g:i a"))
	assert.Equal(t, "29 1 4 59 09 09 d 29", placeholder.FormatDate(ts, `t L N z W h \d`+" d"))
	assert.Equal(t, "Y", placeholder.FormatDate(ts, `\Y`))
}
