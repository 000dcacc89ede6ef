package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"supplychat/agent"
)

func newAskCommand() *cobra.Command {
	var (
		threadID string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := startApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Shutdown()

			resp := app.Orchestrator().ProcessQuery(cmd.Context(), strings.Join(args, " "), threadID)
			if asJSON {
				b, err := resp.JSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
			} else {
				printResponse(cmd.OutOrStdout(), resp)
			}
			if resp.Type == agent.ResponseError {
				return fmt.Errorf("query failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&threadID, "thread", "t", agent.DefaultThreadID, "conversation thread to answer in")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the response as JSON")
	return cmd
}

// maxPrintedRows caps the rows printResponse writes for a table.
const maxPrintedRows = 20

// printResponse renders a response for a terminal.
func printResponse(w io.Writer, resp agent.AgentResponse) {
	if resp.Type == agent.ResponseError {
		fmt.Fprintln(w, "Error:", resp.Content)
		return
	}
	fmt.Fprintln(w, resp.Message())

	if resp.SQLQuery != "" {
		fmt.Fprintf(w, "\nSQL: %s\n", resp.SQLQuery)
	}
	if resp.Table != nil && len(resp.Table.Columns) > 0 {
		fmt.Fprintln(w)
		printTable(w, resp.Table)
	}
	if resp.Chart != nil {
		switch {
		case resp.Chart.Degraded():
			fmt.Fprintln(w, "\n[chart could not be rendered]")
		case resp.Chart.Description != "":
			fmt.Fprintf(w, "\n[chart %s] %s\n", resp.Chart.ID, resp.Chart.Description)
		default:
			fmt.Fprintf(w, "\n[chart %s]\n", resp.Chart.ID)
		}
	}
}

func printTable(w io.Writer, t *agent.Table) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	for i, row := range t.Rows {
		if i == maxPrintedRows {
			fmt.Fprintf(tw, "... %d more rows\n", len(t.Rows)-maxPrintedRows)
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = agent.FormatCell(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}
