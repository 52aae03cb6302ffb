package stringutil_test

import (
	"testing"

	"github.com/formmailer/formmailer/pkg/stringutil"
)

func TestEscapeHTML(t *testing.T) {
	want := "&lt;a href=&quot;x&quot;&gt;Tom &amp; Jerry&#039;s&lt;/a&gt;"
	got := stringutil.EscapeHTML(`<a href="x">Tom & Jerry's</a>`)
	if got != want {
		t.Errorf("Got %q, want %q", got, want)
	}
}

func TestEncodeHTML(t *testing.T) {
	testCases := []struct {
		input string
		nl2br bool
		want  string
	}{
		{input: "plain", want: "plain"},
		{input: "<b>", want: "&lt;b&gt;"},
		{input: "①㈱", want: "(1)(株)"},
		{input: "ｶﾞｲﾄﾞ", want: "ガイド"},
		{input: "a\nb", want: "a\nb"},
		{input: "a\nb", nl2br: true, want: "a<br />\nb"},
		{input: "a\r\nb", nl2br: true, want: "a<br />\r\nb"},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got := stringutil.EncodeHTML(tc.input, tc.nl2br)
			if got != tc.want {
				t.Errorf("Got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNL2BR(t *testing.T) {
	want := "one<br />\ntwo<br />\n<br />\nthree"
	got := stringutil.NL2BR("one\ntwo\n\nthree")
	if got != want {
		t.Errorf("Got %q, want %q", got, want)
	}
}

func TestSliceContains(t *testing.T) {
	slice := []string{"jpg", "png"}
	if !stringutil.SliceContains(slice, "png") {
		t.Error("Got false, want true for png")
	}
	if stringutil.SliceContains(slice, "gif") {
		t.Error("Got true, want false for gif")
	}
}

func TestSplitTrim(t *testing.T) {
	got := stringutil.SplitTrim(" a@x.com, ,b@y.com ", ",")
	want := []string{"a@x.com", "b@y.com"}
	if len(got) != len(want) {
		t.Fatalf("Got %v strings, want: %v", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("Got %q, want: %q", got[i], want[i])
		}
	}
}

func TestParseFormName(t *testing.T) {
	testCases := []struct {
		input, want string
		ok          bool
	}{
		{"contact", "contact", true},
		{"  @forms/contact.tpl ", "@forms/contact.tpl", true},
		{"   ", "", false},
		{"a\x00b", "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := stringutil.ParseFormName(tc.input)
			if (err == nil) != tc.ok {
				t.Fatalf("ParseFormName(%q) err = %v, want ok %v", tc.input, err, tc.ok)
			}
			if got != tc.want {
				t.Errorf("Got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMakePathPrefixer(t *testing.T) {
	testCases := []struct {
		base, path, want string
	}{
		{"", "/api/", "/api/"},
		{"/", "/page/3", "/page/3"},
		{"forms", "/api/", "/forms/api/"},
		{"/forms/", "/page/3", "/forms/page/3"},
		{"a/b", "form/x", "/a/b/form/x"},
	}
	for _, tc := range testCases {
		got := stringutil.MakePathPrefixer(tc.base)(tc.path)
		if got != tc.want {
			t.Errorf("MakePathPrefixer(%q)(%q) = %q, want %q", tc.base, tc.path, got, tc.want)
		}
	}
}
