// Command tutor is a realtime voice learning assistant.
//
// Usage:
//
//	tutor [flags] <command> [subcommand] [args]
//
// Commands:
//
//	talk      - Start a voice session on a topic
//	topic     - Manage topics (add, list, delete)
//	history   - Show, copy, clear or export a topic's conversation
//	graph     - Show or regenerate a topic's concept graph
//	config    - Manage the configuration file
//	devices   - List audio devices
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/josancamon19/realtime-tutor/cmd/tutor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
