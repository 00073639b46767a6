package main

import (
	"fmt"
	"io"

	"github.com/looptide/looptide"
	"github.com/looptide/looptide/mini"
	"github.com/looptide/looptide/pattern"
	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "query <mini-notation>",
		Short: "Print the events of a pattern in a time window",
		Example: `  looptide query "bd sn"
  looptide query "<bd sn cp>" --from 0 --to 3
  looptide query "hh(3,8,2)" --from 1/2 --to 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return query(cmd.OutOrStdout(), args[0], from, to)
		},
	}
	cmd.Flags().StringVar(&from, "from", "0", "window start in cycles (integer, a/b or decimal)")
	cmd.Flags().StringVar(&to, "to", "1", "window end in cycles")
	return cmd
}

func query(w io.Writer, text, from, to string) error {
	begin, err := pattern.ParseFraction(from)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	end, err := pattern.ParseFraction(to)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	if end.Lt(begin) {
		return fmt.Errorf("window ends at %v before it begins at %v", end, begin)
	}
	p, err := mini.Compile(text)
	if err != nil {
		return err
	}
	for _, h := range p.QuerySpan(begin, end) {
		fmt.Fprintln(w, h)
	}
	return nil
}

func newNodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List the node types with their parameters and options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listNodes(cmd.OutOrStdout())
			return nil
		},
	}
}

func listNodes(w io.Writer) {
	for _, name := range looptide.NodeTypeNames() {
		fmt.Fprintln(w, looptide.NodeTypes[name].Describe(name))
	}
}
