package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/josancamon19/realtime-tutor/pkg/audio/portaudio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer portaudio.Terminate()
		devices, err := portaudio.Devices()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("output") || jqQuery != "" {
			return output(cmd, devices)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DEFAULT\tINDEX\tNAME\tIN\tOUT\tRATE")
		for _, d := range devices {
			def := ""
			switch {
			case d.IsDefaultInput && d.IsDefaultOutput:
				def = "in/out"
			case d.IsDefaultInput:
				def = "in"
			case d.IsDefaultOutput:
				def = "out"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\t%.0f\n", def, d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
