package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"supplychat/agent"
	"supplychat/chatstore"
)

func newHistoryCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history [thread]",
		Short: "Print the stored turns of a thread",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := startApp(cmd.Context(), WithoutAgent())
			if err != nil {
				return err
			}
			defer app.Shutdown()

			threadID := agent.DefaultThreadID
			if len(args) == 1 {
				threadID = args[0]
			}
			turns, err := app.History(cmd.Context(), threadID)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(turns)
			}
			printTurns(cmd.OutOrStdout(), turns)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print turns as JSON")
	return cmd
}

func printTurns(w io.Writer, turns []chatstore.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(w, "(no history)")
		return
	}
	for _, t := range turns {
		switch {
		case t.Role == chatstore.RoleTool:
			fmt.Fprintf(w, "[tool %s] %s\n", t.ToolName, truncate(t.Content, 200))
		case len(t.ToolCalls) > 0:
			for _, c := range t.ToolCalls {
				fmt.Fprintf(w, "[%s -> %s] %s\n", t.Role, c.Name, c.Arguments)
			}
		default:
			fmt.Fprintf(w, "[%s] %s\n", t.Role, t.Content)
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
