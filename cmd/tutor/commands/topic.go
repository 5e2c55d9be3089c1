package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Manage topics",
	Long: `Manage topics. Every session belongs to a topic, which keeps its own
history and concept graph.

Examples:
  tutor topic add "Photosynthesis"
  tutor topic list
  tutor topic list -o json --jq '.[].title'
  tutor topic delete photosynthesis`,
}

var topicAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := a.history.AddTopic(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Topic %q created (%s).\n", t.Title, t.ID)
		return nil
	},
}

var topicListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		topics, err := a.history.ListTopics(ctx)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("output") || jqQuery != "" {
			return output(cmd, topics)
		}
		if len(topics) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No topics yet.")
			fmt.Fprintln(cmd.OutOrStdout(), "Create one with: tutor topic add <title>")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tCREATED")
		for _, t := range topics {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Title, t.Created.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var topicDeleteCmd = &cobra.Command{
	Use:   "delete <topic>",
	Short: "Delete a topic with its history, graph and archived audio",
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
				fmt.Fprintf(os.Stderr, "warning: clear audio archive: %v\n", err)
			}
		}
		if err := a.history.DeleteTopic(ctx, t.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Topic %q deleted.\n", t.Title)
		return nil
	},
}

func init() {
	topicCmd.AddCommand(topicAddCmd, topicListCmd, topicDeleteCmd)
	rootCmd.AddCommand(topicCmd)
}
