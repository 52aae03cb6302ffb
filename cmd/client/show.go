package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/formmailer/formmailer/pkg/rest/client"
	"github.com/google/subcommands"
)

type showCmd struct {
	delete bool
}

func (*showCmd) Name() string {
	return "show"
}

func (*showCmd) Synopsis() string {
	return "output the fields of a submission"
}

func (*showCmd) Usage() string {
	return `show [flags] <id>:
	output the fields of a stored submission in form order
`
}

func (s *showCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&s.delete, "delete", false, "delete the submission after output")
}

func (s *showCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	id := f.Arg(0)
	if id == "" {
		return usage("submission id required")
	}
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}
	sub, err := c.GetSubmission(ctx, id)
	if err != nil {
		return fatal("REST call failed", err)
	}
	if err := writeSubmission(os.Stdout, sub); err != nil {
		return fatal("Error", err)
	}
	if s.delete {
		if err := sub.Delete(ctx); err != nil {
			return fatal("Delete REST call failed", err)
		}
	}
	return subcommands.ExitSuccess
}

// writeSubmission prints a header block followed by one "name: value" line per field.
// Continuation lines of multi-line values are indented.
func writeSubmission(w io.Writer, sub *client.Submission) error {
	if _, err := fmt.Fprintf(w, "ID: %s\nForm: %s\nCreated: %s\n\n",
		sub.ID, sub.Form, sub.Created.Format("2006-01-02 15:04:05 -0700")); err != nil {
		return err
	}
	for _, f := range sub.Fields {
		value := strings.ReplaceAll(f.Value, "\n", "\n\t")
		if _, err := fmt.Fprintf(w, "%s: %s\n", f.Name, value); err != nil {
			return err
		}
	}
	return nil
}
