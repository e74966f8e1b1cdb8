package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ashureev/leadintel/internal/chat"
	"github.com/ashureev/leadintel/internal/domain"
)

func newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation with the assistant",
		Long: `Reads messages from standard input, one per line, and prints each reply.

Commands:
  /clear   empty the transcript
  /quit    leave the conversation`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	conv := chat.New(chat.Config{
		SystemPrompt: a.cfg.Chat.SystemPrompt,
		HistoryLimit: a.cfg.Chat.HistoryLimit,
	}, a.chat, a.creds, a.logger)

	return chatLoop(cmd, conv, a.chat.Model(), cmd.InOrStdin(), cmd.OutOrStdout())
}

func chatLoop(cmd *cobra.Command, conv *chat.Orchestrator, model string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, color.CyanString("Conversation %s with %s (/clear, /quit)", conv.ID(), model))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, color.GreenString("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			conv.ClearChat()
			fmt.Fprintln(out, color.CyanString("Transcript cleared"))
			continue
		}

		snap, err := conv.SendMessage(cmd.Context(), line)
		if errors.Is(err, domain.ErrMissingCredential) {
			fmt.Fprintln(out, color.RedString("No chat-provider token. Run: leadctl credential set chat-provider <token>"))
			continue
		}
		if n := len(snap.Turns); n > 0 && snap.Turns[n-1].Role == domain.RoleAssistant {
			reply := snap.Turns[n-1].Content
			if err != nil {
				reply = color.RedString("%s", reply)
			}
			fmt.Fprintf(out, "%s %s\n", color.MagentaString("assistant>"), reply)
		}
	}
}
