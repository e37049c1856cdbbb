package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show daemon and audio system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp map[string]any
		if err := apiCall("GET", "/server/sound/info", nil, &resp); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

var volumeCmd = &cobra.Command{
	Use:       "volume <up|down>",
	Short:     "Step the system volume up or down",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Message string `json:"message"`
		}
		err := apiCall("POST", "/server/sound/volume", map[string]string{
			"direction": args[0],
		}, &resp)
		if err != nil {
			return err
		}
		fmt.Println(resp.Message)
		return nil
	},
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Toggle the radio stream",
	Long: `Toggle the background radio stream.

Stopping and restarting within the configured switch window skips to the
next configured stream; restarting later resumes the same one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Message string `json:"message"`
		}
		if err := apiCall("POST", "/server/sound/stream", nil, &resp); err != nil {
			return err
		}
		fmt.Println(resp.Message)
		return nil
	},
}
