package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/api"
)

// historyCmd lists the messages of a conversation.
func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Show conversation history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(
				cfg.API.BaseURL,
				cfg.API.AuthToken,
				time.Duration(cfg.API.TimeoutSeconds)*time.Second,
				cfg.API.UseMsgpack,
			)

			list, err := client.ListMessages(context.Background(), args[0], limit)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}

			for _, m := range list.Messages {
				role := "assistant"
				if m.IsFromUser() {
					role = "user"
				}
				fmt.Printf("[%s] %-9s %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"), role, m.Content)
			}
			if list.HasMore {
				fmt.Printf("... %d more (showing last %d)\n", list.TotalCount-len(list.Messages), len(list.Messages))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of messages to show")
	return cmd
}
