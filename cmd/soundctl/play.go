package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var playOpts struct {
	now bool
}

var playCmd = &cobra.Command{
	Use:   "play <sound>",
	Short: "Play a notification sound",
	Long: `Play a sound by predefined name or file name.

The name is resolved against the daemon's predefined sound table first,
then against the sound directory with and without a .wav suffix.

Examples:
  # Play a sound by name
  soundctl play print_complete

  # Preempt whatever is playing
  soundctl play alert --now`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Message string `json:"message"`
		}
		err := apiCall("POST", "/server/sound/play", map[string]any{
			"sound": args[0],
			"now":   playOpts.now,
		}, &resp)
		if err != nil {
			return err
		}
		fmt.Println(resp.Message)
		return nil
	},
}

func init() {
	playCmd.Flags().BoolVar(&playOpts.now, "now", false, "Force playback, preempting any in-flight sound")
}
