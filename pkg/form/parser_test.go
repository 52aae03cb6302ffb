package form_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formmailer/formmailer/pkg/form"
)

const contactTemplate = `<h1>Contact</h1>
<label for="f-name">Your <em>name</em></label>
<form action="/form/contact" method="post">
  <input type="text" id="f-name" name="name" valid="1:len(1-20)" />
  <input type="text" name="email" valid="1:email:E-mail" />
  <input name="nickname" />
  <select name="topic" valid="1">
    <option value="a">A</option>
    <option value="b">B</option>
  </select>
  <input type="checkbox" name="colors[]" value="red" valid=":convert(KV),len(-10)" />
  <input type="checkbox" name="colors[]" value="blue" valid="1:num" />
  <textarea name="body" valid='0:len(-500):Message'></textarea>
  <input type="submit" name="send" value="Send" />
</form>`

func TestParse(t *testing.T) {
	got, err := form.Parse(contactTemplate)
	require.NoError(t, err)
	want := form.Schema{
		{Name: "name", Type: "text", Required: true, Rules: []form.Rule{{Name: "len", Param: "1-20"}}, Label: "Your name"},
		{Name: "email", Type: "text", Required: true, Rules: []form.Rule{{Name: "email"}}, Label: "E-mail"},
		{Name: "nickname", Type: "text"},
		{Name: "topic", Type: "select", Required: true},
		{Name: "colors", Type: "checkbox", Rules: []form.Rule{{Name: "convert", Param: "KV"}, {Name: "len", Param: "-10"}}},
		{Name: "body", Type: "textarea", Rules: []form.Rule{{Name: "len", Param: "-500"}}, Label: "Message"},
		{Name: "send", Type: "submit"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIsIdempotent(t *testing.T) {
	first, err := form.Parse(contactTemplate)
	require.NoError(t, err)
	second, err := form.Parse(contactTemplate)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(first, second))
}

func TestParseNoForm(t *testing.T) {
	_, err := form.Parse(`<input name="x" />`)
	assert.ErrorIs(t, err, form.ErrNoForm)
}

func TestParseUnlabeledFieldWithoutID(t *testing.T) {
	schema, err := form.Parse(`<form><input type="text" name="x" valid="1:num"></form>`)
	require.NoError(t, err)
	require.Len(t, schema, 1)
	assert.Equal(t, "", schema[0].Label)
	assert.Equal(t, "x", schema.Label("x"))
	assert.Equal(t, "unknown", schema.Label("unknown"))
}

func TestParseValidKeepsThirdPartAsLabel(t *testing.T) {
	schema, err := form.Parse(`<form><input type="text" name="mail" valid="1:email:Mail:addr"></form>`)
	require.NoError(t, err)
	require.Len(t, schema, 1)
	assert.True(t, schema[0].Required)
	assert.Equal(t, []form.Rule{{Name: "email"}}, schema[0].Rules)
	assert.Equal(t, "Mail", schema[0].Label)
}

func TestParseRules(t *testing.T) {
	got := form.ParseRules("num, len(3-5),,allowtype(jpg|png),bad(x")
	want := []form.Rule{
		{Name: "num"},
		{Name: "len", Param: "3-5"},
		{Name: "allowtype", Param: "jpg|png"},
	}
	assert.Equal(t, want, got)
}
