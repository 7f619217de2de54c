package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"denim/internal/domain"
	commandsvc "denim/internal/services/command"
	"denim/internal/store"
)

var peerHost string

// history: offline access to the message log kept for one peer.
func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or edit the message history for a peer",
	}
	cmd.PersistentFlags().StringVar(&peerHost, "peer-host", "", "peer host whose history to open")
	_ = cmd.MarkPersistentFlagRequired("peer-host")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print every message",
			Args:  cobra.NoArgs,
			RunE: withHistory(func(cmd *cobra.Command, h domain.HistoryStore, _ []string) error {
				return commandsvc.New(h, nil, cmd.OutOrStdout()).Execute(cmd.Context(), commandsvc.View)
			}),
		},
		&cobra.Command{
			Use:   "edit <index> <text>",
			Short: "Replace the text of a message",
			Args:  cobra.ExactArgs(2),
			RunE: withHistory(func(cmd *cobra.Command, h domain.HistoryStore, args []string) error {
				idx, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("index %q: %w", args[0], err)
				}
				if err := h.Update(cmd.Context(), idx, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Message %d updated.\n", idx)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "delete <index>",
			Short: "Delete a message and renumber the rest",
			Args:  cobra.ExactArgs(1),
			RunE: withHistory(func(cmd *cobra.Command, h domain.HistoryStore, args []string) error {
				idx, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("index %q: %w", args[0], err)
				}
				if err := h.Delete(cmd.Context(), idx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Message %d deleted.\n", idx)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "export <file>",
			Short: "Write the history to a JSON file",
			Args:  cobra.ExactArgs(1),
			RunE: withHistory(func(cmd *cobra.Command, h domain.HistoryStore, args []string) error {
				return store.ExportJSON(cmd.Context(), h, args[0])
			}),
		},
	)
	return cmd
}

func withHistory(fn func(*cobra.Command, domain.HistoryStore, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		h, err := store.OpenHistory(store.HistoryPath(wire.Config.Home, peerHost))
		if err != nil {
			return err
		}
		defer h.Close()
		return fn(cmd, h, args)
	}
}
