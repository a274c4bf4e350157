package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bharatgo/chat-widget/pkg/chatapi"
	"github.com/bharatgo/chat-widget/pkg/session"
)

func newChatCommand() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat with the answering service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, sessions, err := newEnvironment()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			client, err := newChatClient(cfg, sessions)
			if err != nil {
				return err
			}
			return runChat(cmd, sessions, client, plain)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print answers without markdown rendering")
	return cmd
}

func runChat(cmd *cobra.Command, sessions *session.Manager, client *chatapi.Client, plain bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// Replay what an embedded widget would show on reopen.
	for _, msg := range sessions.History(ctx) {
		printMessage(out, msg, plain)
	}

	fmt.Fprintln(out, "Type a question, or /quit to exit.")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		userMsg := session.Message{
			ID:      uuid.NewString(),
			Role:    session.RoleUser,
			Content: line,
		}
		sessions.AppendMessage(ctx, userMsg)

		answer, err := client.Ask(ctx, line)
		if err != nil {
			// Keep the conversation going; show the failure inline the way
			// the widget surfaces errors.
			errMsg := session.Message{
				ID:      uuid.NewString(),
				Role:    session.RoleSystem,
				Content: "Something went wrong: " + err.Error(),
			}
			sessions.AppendMessage(ctx, errMsg)
			printMessage(out, errMsg, plain)
			log.Debug().Err(err).Str("component", "chat").Msg("ask failed")
			continue
		}

		reply := session.Message{
			ID:      uuid.NewString(),
			Role:    session.RoleAssistant,
			Content: answer.Answer,
		}
		sessions.AppendMessage(ctx, reply)
		printMessage(out, reply, plain)

		if answer.RequiresUserInfo {
			fields := strings.Join(answer.MissingFields, ", ")
			if fields == "" {
				fields = "contact details"
			}
			fmt.Fprintf(out, "(the service asks for: %s)\n", fields)
		}
		for _, page := range answer.RelevantPages {
			fmt.Fprintf(out, "  see: %s\n", page)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read input")
	}
	return nil
}

func printMessage(out io.Writer, msg session.Message, plain bool) {
	prefix := map[session.Role]string{
		session.RoleUser:      "you",
		session.RoleAssistant: "bot",
		session.RoleSystem:    "sys",
	}[msg.Role]

	content := msg.Content
	if !plain && msg.Role == session.RoleAssistant {
		if rendered, err := glamour.Render(content, "dark"); err == nil {
			content = strings.TrimSpace(rendered)
		}
	}
	fmt.Fprintf(out, "[%s] %s\n", prefix, content)
}
