package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/chat"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/domain"
	"github.com/HamdiBarkous/t3-chat-clone-sub000/internal/domain/models"
)

// chatCmd runs an interactive streaming chat session.
func chatCmd() *cobra.Command {
	var model string
	var useTools bool
	var enabledTools []string
	var reasoning bool

	cmd := &cobra.Command{
		Use:   "chat <conversation-id>",
		Short: "Interactive chat in a conversation",
		Long: `Start an interactive chat session. Messages stream token by token;
tool executions and reasoning are shown inline as they happen.

Attach files by prefixing the message with /attach:
  /attach notes.txt,report.pdf What do these say?
Regenerate the last response with /retry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			ui := newChatPrinter()
			session, cleanup, err := newSession(ui)
			if err != nil {
				return err
			}
			defer cleanup()
			ui.session = session

			if err := session.SetConversation(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to open conversation: %w", err)
			}

			messages, _ := session.Snapshot()
			for _, m := range messages {
				printMessage(m)
			}

			fmt.Println("Type a message and press Enter. Type 'exit' or 'quit' to leave.")
			fmt.Println(strings.Repeat("-", 80))

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("You: ")
				if !scanner.Scan() {
					break
				}
				input := strings.TrimSpace(scanner.Text())
				if input == "" {
					continue
				}
				if input == "exit" || input == "quit" {
					fmt.Println("\nGoodbye!")
					break
				}

				opts := chat.SendOptions{
					Model:            model,
					UseTools:         useTools,
					EnabledTools:     enabledTools,
					ReasoningEnabled: reasoning,
				}

				var err error
				switch {
				case input == "/retry":
					err = session.GenerateResponse(ctx, opts)
				case strings.HasPrefix(input, "/attach "):
					var content string
					opts.Attachments, content, err = parseAttachments(strings.TrimPrefix(input, "/attach "))
					if err == nil {
						err = session.SendMessage(ctx, content, opts)
					}
				default:
					err = session.SendMessage(ctx, input, opts)
				}

				switch {
				case err == nil:
					ui.waitForExchange()
				case errors.Is(err, domain.ErrStreamActive):
					fmt.Println("(a response is still streaming)")
				case errors.Is(err, domain.ErrNoUserMessage):
					// Already surfaced as a notice.
				case err != nil:
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "model to use (defaults to configured model)")
	cmd.Flags().BoolVar(&useTools, "tools", false, "allow the assistant to invoke tools")
	cmd.Flags().StringSliceVar(&enabledTools, "enabled-tools", nil, "restrict tool use to these tools")
	cmd.Flags().BoolVar(&reasoning, "reasoning", false, "request reasoning output")
	return cmd
}

// parseAttachments splits "file1,file2 message text" into open attachments
// plus the remaining message.
func parseAttachments(input string) ([]chat.Attachment, string, error) {
	fields := strings.SplitN(input, " ", 2)
	content := ""
	if len(fields) == 2 {
		content = strings.TrimSpace(fields[1])
	}

	var attachments []chat.Attachment
	for _, path := range strings.Split(fields[0], ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("cannot open %s: %w", path, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, "", fmt.Errorf("cannot stat %s: %w", path, err)
		}
		attachments = append(attachments, chat.Attachment{
			Filename: filepath.Base(path),
			Size:     info.Size(),
			Reader:   f,
		})
	}
	return attachments, content, nil
}

// chatPrinter renders session state to the terminal. It implements
// chat.Listener by re-printing the streaming tail on every state change.
type chatPrinter struct {
	session *chat.Session

	mu       sync.Mutex
	lastLen  int
	done     chan struct{}
	printing bool
}

func newChatPrinter() *chatPrinter {
	return &chatPrinter{done: make(chan struct{}, 1)}
}

func (p *chatPrinter) OnStateChanged() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return
	}

	messages, _ := p.session.Snapshot()
	if len(messages) == 0 {
		return
	}
	last := messages[len(messages)-1]
	if !last.IsStreaming() {
		if p.printing {
			// Print whatever tail the last flush missed, then finish the line.
			fmt.Print(last.Content[min(p.lastLen, len(last.Content)):])
			fmt.Println()
			p.printing = false
			p.lastLen = 0
			p.signalDone()
		}
		return
	}

	if !p.printing {
		fmt.Print("Assistant: ")
		p.printing = true
		p.lastLen = 0
	}
	if len(last.Content) > p.lastLen {
		fmt.Print(last.Content[p.lastLen:])
		p.lastLen = len(last.Content)
	}
}

func (p *chatPrinter) OnTitleGenerating(string) {}

func (p *chatPrinter) OnTitleUpdate(_, title string) {
	fmt.Printf("\n(conversation titled %q)\n", title)
}

func (p *chatPrinter) OnNotice(msg string) {
	fmt.Printf("\n(%s)\n", msg)
}

func (p *chatPrinter) OnError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(os.Stderr, "\nerror: %s\n", msg)
	p.printing = false
	p.lastLen = 0
	p.signalDone()
}

func (p *chatPrinter) signalDone() {
	select {
	case p.done <- struct{}{}:
	default:
	}
}

// waitForExchange blocks until the in-flight exchange settles.
func (p *chatPrinter) waitForExchange() {
	for {
		select {
		case <-p.done:
			return
		case <-time.After(20 * time.Millisecond):
		}
		if p.session != nil && !p.session.StreamActive() {
			// Drain a possibly pending signal before returning.
			select {
			case <-p.done:
			default:
			}
			return
		}
	}
}

func printMessage(m *models.Message) {
	role := "Assistant"
	if m.IsFromUser() {
		role = "You"
	}
	fmt.Printf("%s: %s\n", role, m.Content)
}
