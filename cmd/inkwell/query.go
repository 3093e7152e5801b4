package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	inkwell "github.com/inkwellai/inkwell-go"
)

func newQueryCmd(flags *rootFlags) *cobra.Command {
	var connectionID string

	cmd := &cobra.Command{
		Use:   "query <prompt>",
		Short: "Generate and run a database query from natural language",
		Long:  "Streams query generation phase by phase: the backend generates query text, validates it, executes it against the chosen connection, and returns the result set.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(flags)
			if err != nil {
				return err
			}
			defer e.cleanup()

			connID := connectionID
			if connID == "" {
				connID = e.connID
			}
			if connID == "" {
				return fmt.Errorf("no connection: pass --connection or use --mock")
			}
			return runQuery(cmd, e.client, connID, args[0])
		},
	}

	cmd.Flags().StringVar(&connectionID, "connection", "", "connection id to execute against")
	return cmd
}

func runQuery(cmd *cobra.Command, client *inkwell.Client, connID, prompt string) error {
	out := cmd.OutOrStdout()

	terminal := make(chan inkwell.QueryState, 1)
	wf := client.NewQueryWorkflow(func(st inkwell.QueryState) {
		switch st.Phase {
		case inkwell.QueryGenerating, inkwell.QueryValidating, inkwell.QueryExecuting:
			fmt.Fprintf(out, "… %s\n", st.Phase)
		case inkwell.QueryComplete, inkwell.QueryErrored:
			terminal <- st
		}
	})

	if err := wf.Submit(cmd.Context(), connID, prompt); err != nil {
		return err
	}

	st := <-terminal
	if st.Err != nil {
		return st.Err
	}

	fmt.Fprintf(out, "\n%s\n", strings.TrimSpace(st.Result.Query))
	printResultTable(out, st.Result)
	return nil
}

func printResultTable(out io.Writer, result *inkwell.QueryResult) {
	if len(result.Rows) == 0 {
		return
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, 0, len(result.Columns))
		for _, col := range result.Columns {
			cells = append(cells, fmt.Sprint(row[col]))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()

	if count, ok := result.Metadata["row_count"]; ok {
		fmt.Fprintf(out, "(%v rows)\n", count)
	}
}
