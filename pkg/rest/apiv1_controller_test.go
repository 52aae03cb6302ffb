package rest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/formmailer/formmailer/pkg/storage"
	"github.com/formmailer/formmailer/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	baseURL = "http://localhost/api/v1"

	// JSON map keys
	idKey      = "id"
	formKey    = "form"
	createdKey = "created"
	fieldsKey  = "fields"
	nameKey    = "name"
	valueKey   = "value"
)

func seedStore(t *testing.T) *test.StoreStub {
	t.Helper()
	st := test.NewStore()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, sub := range []*storage.Submission{
		{Form: "contact", Created: created, Fields: []storage.Field{
			{Name: "name", Value: "Taro", Rank: 0},
			{Name: "email", Value: "taro@example.com", Rank: 1},
		}},
		{Form: "survey", Created: created.Add(time.Hour), Fields: []storage.Field{
			{Name: "q1", Value: "yes", Rank: 0},
		}},
		{Form: "contact", Created: created.Add(2 * time.Hour), Fields: []storage.Field{
			{Name: "name", Value: "Hanako", Rank: 0},
		}},
	} {
		_, err := st.Add(sub)
		require.NoError(t, err)
	}
	return st
}

func TestRestFormSubmissions(t *testing.T) {
	st := seedStore(t)
	st.FailForm = "broken"
	setupWebServer(st)

	w, err := testRestGet(baseURL + "/forms/contact/submissions")
	require.NoError(t, err)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var result any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	list, ok := result.([]any)
	require.True(t, ok, "result is not a slice")
	assert.Len(t, list, 2)
	decodedStringEquals(t, result, "[0]/"+idKey, "1")
	decodedStringEquals(t, result, "[0]/"+formKey, "contact")
	decodedStringEquals(t, result, "[0]/"+createdKey, "2024-03-01T10:00:00Z")
	decodedNumberEquals(t, result, "[0]/"+fieldsKey, 2)
	decodedStringEquals(t, result, "[1]/"+idKey, "3")
	decodedNumberEquals(t, result, "[1]/"+fieldsKey, 1)

	// Unknown forms list as empty.
	w, err = testRestGet(baseURL + "/forms/nothing/submissions")
	require.NoError(t, err)
	assert.Equal(t, 200, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	// Store failures surface as 500.
	w, err = testRestGet(baseURL + "/forms/broken/submissions")
	require.NoError(t, err)
	assert.Equal(t, 500, w.Code)
}

func TestRestSubmissionShow(t *testing.T) {
	setupWebServer(seedStore(t))

	w, err := testRestGet(baseURL + "/submissions/1")
	require.NoError(t, err)
	require.Equal(t, 200, w.Code)

	var result any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	decodedStringEquals(t, result, idKey, "1")
	decodedStringEquals(t, result, formKey, "contact")
	decodedStringEquals(t, result, fieldsKey+"/[0]/"+nameKey, "name")
	decodedStringEquals(t, result, fieldsKey+"/[0]/"+valueKey, "Taro")
	decodedStringEquals(t, result, fieldsKey+"/[1]/"+nameKey, "email")
	decodedStringEquals(t, result, fieldsKey+"/[1]/"+valueKey, "taro@example.com")

	w, err = testRestGet(baseURL + "/submissions/99")
	require.NoError(t, err)
	assert.Equal(t, 404, w.Code)
}

func TestRestSubmissionDelete(t *testing.T) {
	st := seedStore(t)
	setupWebServer(st)

	w, err := testRestRequest("DELETE", baseURL+"/submissions/2")
	require.NoError(t, err)
	assert.Equal(t, 200, w.Code)
	assert.Len(t, st.All(), 2)
	_, err = st.Get("2")
	assert.ErrorIs(t, err, storage.ErrNotExist)

	w, err = testRestRequest("DELETE", baseURL+"/submissions/2")
	require.NoError(t, err)
	assert.Equal(t, 404, w.Code)
}

func TestRestMethodNotAllowed(t *testing.T) {
	setupWebServer(seedStore(t))

	w, err := testRestRequest("POST", baseURL+"/submissions/1")
	require.NoError(t, err)
	assert.Equal(t, 405, w.Code)
}
