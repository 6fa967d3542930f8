package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/api"
)

// conversationsCmd lists known conversations.
func conversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(
				cfg.API.BaseURL,
				cfg.API.AuthToken,
				time.Duration(cfg.API.TimeoutSeconds)*time.Second,
				cfg.API.UseMsgpack,
			)

			conversations, err := client.ListConversations(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list conversations: %w", err)
			}
			if len(conversations) == 0 {
				fmt.Println("No conversations yet.")
				return nil
			}

			for _, c := range conversations {
				title := c.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Printf("%-24s %-40s %s\n", c.ID, title, c.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
