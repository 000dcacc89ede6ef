package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newChatCommand() *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := startApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Shutdown()

			if threadID == "" {
				threadID = uuid.NewString()
			}
			return runChat(cmd.Context(), app.Orchestrator(), threadID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&threadID, "thread", "t", "", "resume an existing thread (default: a new thread)")
	return cmd
}

// runChat reads one question per line until EOF or /exit.
func runChat(ctx context.Context, a assistant, threadID string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Thread %s. Commands: /history, /clear, /exit\n", threadID)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			if err := a.ClearMemory(ctx, threadID); err != nil {
				fmt.Fprintln(out, "Error:", err)
				continue
			}
			fmt.Fprintln(out, "Memory cleared.")
			continue
		case "/history":
			turns, err := a.GetConversationHistory(ctx, threadID)
			if err != nil {
				fmt.Fprintln(out, "Error:", err)
				continue
			}
			printTurns(out, turns)
			continue
		}

		resp := a.ProcessQuery(ctx, line, threadID)
		printResponse(out, resp)
		fmt.Fprintln(out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
