package sanitize

import (
	"testing"
)

func TestCleanStyle(t *testing.T) {
	testCases := []struct {
		input, want string
	}{
		{"", ""},
		{"color: red;", "color: red;"},
		{"font-weight: bold; color: navy", "font-weight: bold;color: navy"},
		{"color: red; position: fixed; text-align: center", "color: red;text-align: center"},
		{"display: none;", ""},
		{"; ;color: red", "color: red"},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got := cleanStyle(tc.input)
			if got != tc.want {
				t.Errorf("got: %q, want: %q, input: %q", got, tc.want, tc.input)
			}
		})
	}
}
