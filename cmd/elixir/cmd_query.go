package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xrefdb/elixir/pkg/family"
	"github.com/xrefdb/elixir/pkg/query"
)

func newQueryCmd() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "query <tag> file <path> | query <tag> ident <name> <family>",
		Short: "Query a fully-indexed tag's definitions and references",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, op := args[0], args[1]

			ctx := context.Background()
			e, err := openEnv(ctx, project)
			if err != nil {
				return err
			}
			defer e.close()
			q := e.query()

			switch op {
			case "file":
				return runQueryFile(ctx, cmd, q, tag, args[2:])
			case "ident":
				return runQueryIdent(ctx, cmd, q, tag, args[2:])
			default:
				return fmt.Errorf("query: unknown operation %q (want file or ident)", op)
			}
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project name to select under LXR_ROOT (multi-project mode)")
	return cmd
}

func runQueryFile(ctx context.Context, cmd *cobra.Command, q *query.Interface, tag string, rest []string) error {
	if len(rest) != 1 {
		return fmt.Errorf("query %s file: want exactly one path argument", tag)
	}
	result, err := q.File(ctx, tag, rest[0])
	if err != nil {
		if errors.Is(err, query.ErrTagNotIndexed) {
			return fmt.Errorf("query: %w", err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "blob %d\n", result.Blob)
	for _, a := range result.Annotations {
		fmt.Fprintf(out, "%d\t%s\t%s\n", a.Line, a.Ident, a.Kind)
	}
	return nil
}

func runQueryIdent(ctx context.Context, cmd *cobra.Command, q *query.Interface, tag string, rest []string) error {
	if len(rest) != 2 {
		return fmt.Errorf("query %s ident: want <name> <family> arguments", tag)
	}
	name, fam := rest[0], family.Family(rest[1])

	result, err := q.Ident(ctx, tag, name, fam)
	if err != nil {
		if errors.Is(err, query.ErrTagNotIndexed) {
			return fmt.Errorf("query: %w", err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	for _, d := range result.Defs {
		fmt.Fprintf(out, "def\t%s\t%d\t%s\n", d.Path, d.Line, d.Kind)
	}
	for _, r := range result.Refs {
		fmt.Fprintf(out, "ref\t%s\t%s\n", r.Path, formatLines(r.Lines))
	}
	return nil
}

func formatLines(lines []int) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%d", l)
	}
	return out
}
