package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"supplychat/agent"
)

func newClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [thread]",
		Short: "Forget the stored history of a thread",
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
			if err := app.Clear(cmd.Context(), threadID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared thread %s\n", threadID)
			return nil
		},
	}
}
