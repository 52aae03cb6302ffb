package extension_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formmailer/formmailer/pkg/extension"
)

func TestAsyncBrokerEmitCallsOneListener(t *testing.T) {
	broker := &extension.AsyncEventBroker[string]{}

	events := make(chan string, 1)
	broker.AddListener("x", func(s string) {
		events <- s
	})

	want := "bacon"
	broker.Emit(&want)

	select {
	case got := <-events:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for event")
	}
}

func TestAsyncBrokerEmitCallsMultipleListeners(t *testing.T) {
	broker := &extension.AsyncEventBroker[string]{}

	first := broker.AsyncTestListener("first", 1)
	second := broker.AsyncTestListener("second", 1)

	want := "hi"
	broker.Emit(&want)

	got, err := first()
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	got, err = second()
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestAsyncBrokerRemovedListenerTimesOut(t *testing.T) {
	broker := &extension.AsyncEventBroker[string]{}

	listener := broker.AsyncTestListener("x", 1)
	broker.RemoveListener("x")

	want := "ignored"
	broker.Emit(&want)

	_, err := listener()
	require.Error(t, err)
}
