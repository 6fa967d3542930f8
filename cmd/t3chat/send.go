package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/chat"
)

// sendCmd sends one message and prints the full response, non-interactive.
func sendCmd() *cobra.Command {
	var model string
	var useTools bool
	var reasoning bool

	cmd := &cobra.Command{
		Use:   "send <conversation-id> <message>",
		Short: "Send one message and print the response",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			l := &oneShotListener{done: make(chan struct{})}
			session, cleanup, err := newSession(l)
			if err != nil {
				return err
			}
			defer cleanup()
			l.session = session

			if err := session.SetConversation(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to open conversation: %w", err)
			}

			if err := session.SendMessage(ctx, args[1], chat.SendOptions{
				Model:            model,
				UseTools:         useTools,
				ReasoningEnabled: reasoning,
			}); err != nil {
				return err
			}

			<-l.done
			if errMsg := session.LastError(); errMsg != "" {
				return fmt.Errorf("exchange failed: %s", errMsg)
			}

			messages, _ := session.Snapshot()
			last := messages[len(messages)-1]
			fmt.Println(last.Content)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "model to use")
	cmd.Flags().BoolVar(&useTools, "tools", false, "allow tool use")
	cmd.Flags().BoolVar(&reasoning, "reasoning", false, "request reasoning output")
	return cmd
}

// oneShotListener closes done when the exchange settles either way.
type oneShotListener struct {
	session *chat.Session
	started atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func (l *oneShotListener) OnStateChanged() {
	if l.session == nil {
		return
	}
	if l.session.StreamActive() {
		l.started.Store(true)
		return
	}
	if l.started.Load() {
		l.once.Do(func() { close(l.done) })
	}
}

func (l *oneShotListener) OnTitleGenerating(string) {}
func (l *oneShotListener) OnTitleUpdate(_, title string) {
	fmt.Fprintf(os.Stderr, "conversation titled %q\n", title)
}

func (l *oneShotListener) OnNotice(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

func (l *oneShotListener) OnError(msg string) {
	l.once.Do(func() { close(l.done) })
}
