package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/form"
	"github.com/google/subcommands"
)

type parseCmd struct {
	configPath string
}

func (*parseCmd) Name() string {
	return "parse"
}

func (*parseCmd) Synopsis() string {
	return "print the field schema of an input template"
}

func (*parseCmd) Usage() string {
	return `parse [flags] <template file>:
	print the fields, validation rules and labels found in an input template
	exit status will be 1 if the form settings have problems
`
}

func (p *parseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.configPath, "config", "", "form settings file to check as well")
}

func (p *parseCmd) Execute(
	_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	path := f.Arg(0)
	if path == "" {
		return usage("template file required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fatal("Couldn't read template", err)
	}
	schema, err := form.Parse(string(b))
	if err != nil {
		return fatal("Couldn't parse template", err)
	}
	if err := writeSchema(os.Stdout, schema); err != nil {
		return fatal("Error", err)
	}

	if p.configPath == "" {
		return subcommands.ExitSuccess
	}
	b, err = os.ReadFile(p.configPath)
	if err != nil {
		return fatal("Couldn't read form settings", err)
	}
	cfg, err := config.ParseForm(filepath.Base(p.configPath), string(b))
	if err != nil {
		return fatal("Couldn't parse form settings", err)
	}
	if problems := cfg.Problems(); len(problems) > 0 {
		for _, problem := range problems {
			fmt.Fprintln(os.Stderr, problem)
		}
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// writeSchema prints one tab aligned row per field.
func writeSchema(w io.Writer, schema form.Schema) error {
	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tREQUIRED\tRULES\tLABEL")
	for _, field := range schema {
		rules := make([]string, len(field.Rules))
		for i, r := range field.Rules {
			rules[i] = r.Name
			if r.Param != "" {
				rules[i] += "(" + r.Param + ")"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\n",
			field.Name, field.Type, field.Required, strings.Join(rules, ","), field.Label)
	}
	return tw.Flush()
}
