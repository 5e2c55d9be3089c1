package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/josancamon19/realtime-tutor/pkg/transcript"
)

var chatPrompt string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show, copy, clear or export a topic's conversation",
	Long: `Work with the conversation history of a topic.

Examples:
  tutor history show photosynthesis
  tutor history show photosynthesis -o json --jq '.[] | select(.sender == "assistant") | .text'
  tutor history copy photosynthesis | pbcopy
  tutor history chat-url photosynthesis
  tutor history clear photosynthesis`,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <topic>",
	Short: "Print the stored messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := a.topic(ctx, args[0])
		if err != nil {
			return err
		}
		msgs, err := a.history.LoadHistory(ctx, t.ID)
		if err != nil {
			return err
		}
		return output(cmd, msgs)
	},
}

var historyCopyCmd = &cobra.Command{
	Use:   "copy <topic>",
	Short: "Print the conversation as plain text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := a.topic(ctx, args[0])
		if err != nil {
			return err
		}
		msgs, err := a.history.LoadHistory(ctx, t.ID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), transcript.Plain(transcript.Join(msgs)))
		return err
	},
}

var historyChatURLCmd = &cobra.Command{
	Use:   "chat-url <topic>",
	Short: "Print a link that opens the conversation in an external chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := a.topic(ctx, args[0])
		if err != nil {
			return err
		}
		msgs, err := a.history.LoadHistory(ctx, t.ID)
		if err != nil {
			return err
		}
		u, err := transcript.ChatURL(a.cfg.Session.ChatURL, chatPrompt, transcript.Join(msgs))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), u)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear <topic>",
	Short: "Delete the topic's history, graph and archived audio",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := a.topic(ctx, args[0])
		if err != nil {
			return err
		}
		if err := a.history.Clear(ctx, t.ID); err != nil {
			return err
		}
		if arc := a.archive(t); arc != nil {
			if err := arc.Clear(ctx); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "History of %q cleared.\n", t.Title)
		return nil
	},
}

func init() {
	historyChatURLCmd.Flags().StringVar(&chatPrompt, "prompt",
		"Here is a tutoring conversation. Help me review what I learned:",
		"text placed before the transcript")
	historyCmd.AddCommand(historyShowCmd, historyCopyCmd, historyChatURLCmd, historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}
