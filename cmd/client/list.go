package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/formmailer/formmailer/pkg/rest/client"
	"github.com/google/subcommands"
)

type listCmd struct{}

func (*listCmd) Name() string {
	return "list"
}

func (*listCmd) Synopsis() string {
	return "list stored submissions of a form"
}

func (*listCmd) Usage() string {
	return `list <form>:
	list submission IDs, creation times and field counts of a form
`
}

func (l *listCmd) SetFlags(f *flag.FlagSet) {}

func (l *listCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	form := f.Arg(0)
	if form == "" {
		return usage("form required")
	}

	// Setup rest client
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}

	// Get list
	headers, err := c.ListForm(ctx, form)
	if err != nil {
		return fatal("REST call failed", err)
	}
	for _, h := range headers {
		fmt.Printf("%s\t%s\t%d\n", h.ID, h.Created.Local().Format(time.RFC3339), h.Fields)
	}

	return subcommands.ExitSuccess
}
