package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/formmailer/formmailer/pkg/rest/client"
	"github.com/google/subcommands"
)

type matchCmd struct {
	output  string
	outFunc func(w io.Writer, subs []*client.Submission) error
	delete  bool
	// match criteria
	field  string
	value  regexFlag
	maxAge time.Duration
}

func (*matchCmd) Name() string {
	return "match"
}

func (*matchCmd) Synopsis() string {
	return "output submissions matching criteria"
}

func (*matchCmd) Usage() string {
	return `match [flags] <form>:
	output submissions of a form matching all specified criteria
	exit status will be 1 if no matches were found, otherwise 0
`
}

func (m *matchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.output, "output", "id", "output format: id, json, or text")
	f.BoolVar(&m.delete, "delete", false, "delete matched submissions after output")
	f.StringVar(&m.field, "field", "", "field whose value -value must match")
	f.Var(&m.value, "value", "field value matching regexp")
	f.DurationVar(
		&m.maxAge, "maxage", 0,
		"Matches must have been submitted in this time frame (ex: \"10s\", \"5m\")")
}

func (m *matchCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	form := f.Arg(0)
	if form == "" {
		return usage("form required")
	}
	if m.value.Defined() && m.field == "" {
		return usage("-value requires -field")
	}
	// Select output function
	switch m.output {
	case "id":
		m.outFunc = outputID
	case "json":
		m.outFunc = outputJSON
	case "text":
		m.outFunc = outputText
	default:
		return usage("unknown output type: " + m.output)
	}
	// Setup REST client
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}
	// Get list
	headers, err := c.ListForm(ctx, form)
	if err != nil {
		return fatal("List REST call failed", err)
	}
	// Find matches
	matches := make([]*client.Submission, 0, len(headers))
	now := time.Now()
	for _, h := range headers {
		if m.maxAge > 0 && now.Sub(h.Created) > m.maxAge {
			continue
		}
		sub, err := h.GetSubmission(ctx)
		if err != nil {
			return fatal("Get REST call failed", err)
		}
		if m.match(sub) {
			matches = append(matches, sub)
		}
	}
	// Return error status if no matches
	if len(matches) == 0 {
		return subcommands.ExitFailure
	}
	// Output matches
	err = m.outFunc(os.Stdout, matches)
	if err != nil {
		return fatal("Error", err)
	}
	if m.delete {
		// Delete matches
		for _, sub := range matches {
			err = sub.Delete(ctx)
			if err != nil {
				return fatal("Delete REST call failed", err)
			}
		}
	}
	return subcommands.ExitSuccess
}

// match returns true if the submission matches the field criterion
func (m *matchCmd) match(sub *client.Submission) bool {
	if m.field == "" {
		return true
	}
	value, ok := sub.Value(m.field)
	if !ok {
		return false
	}
	return !m.value.Defined() || m.value.MatchString(value)
}

func outputID(w io.Writer, subs []*client.Submission) error {
	for _, s := range subs {
		if _, err := fmt.Fprintln(w, s.ID); err != nil {
			return err
		}
	}
	return nil
}

func outputJSON(w io.Writer, subs []*client.Submission) error {
	jsonEncoder := json.NewEncoder(w)
	jsonEncoder.SetEscapeHTML(false)
	jsonEncoder.SetIndent("", "  ")
	return jsonEncoder.Encode(subs)
}

func outputText(w io.Writer, subs []*client.Submission) error {
	for i, s := range subs {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := writeSubmission(w, s); err != nil {
			return err
		}
	}
	return nil
}
