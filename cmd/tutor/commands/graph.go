package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show or regenerate a topic's concept graph",
	Long: `The concept graph is a Mermaid diagram of the ideas discussed in a topic.
It is regenerated automatically during sessions as the conversation grows.

Examples:
  tutor graph show photosynthesis -o raw > graph.mmd
  tutor graph regenerate photosynthesis`,
}

var graphShowCmd = &cobra.Command{
	Use:   "show <topic>",
	Short: "Print the stored graph",
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
		graph, err := a.history.LoadGraph(ctx, t.ID)
		if err != nil {
			return err
		}
		if graph == "" {
			return fmt.Errorf("topic %q has no graph yet", t.Title)
		}
		return output(cmd, map[string]string{"topic": t.Title, "graph": graph})
	},
}

var graphRegenerateCmd = &cobra.Command{
	Use:   "regenerate <topic>",
	Short: "Build the graph from the stored history now",
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
		trigger, err := a.trigger(ctx, t)
		if err != nil {
			return err
		}
		if trigger == nil {
			return errors.New("graph generation is disabled (graph.provider: none)")
		}
		msgs, err := a.history.LoadHistory(ctx, t.ID)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return fmt.Errorf("topic %q has no history yet", t.Title)
		}
		if err := trigger.Regenerate(ctx, msgs); err != nil {
			return err
		}
		return output(cmd, map[string]string{"topic": t.Title, "graph": trigger.Graph()})
	},
}

func init() {
	graphCmd.AddCommand(graphShowCmd, graphRegenerateCmd)
	rootCmd.AddCommand(graphCmd)
}
