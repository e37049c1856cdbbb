package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/CWE3D/lister-sound-system/internal/catalog"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available sounds",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Entries  []catalog.Entry `json:"entries"`
			SoundDir string          `json:"sound_dir"`
		}
		if err := apiCall("GET", "/server/sound/list", nil, &resp); err != nil {
			return err
		}

		if len(resp.Entries) == 0 {
			fmt.Println("No sounds found in", resp.SoundDir)
			return nil
		}

		for _, e := range resp.Entries {
			mark := "✓"
			if !e.Valid {
				mark = "✗"
			}
			line := fmt.Sprintf("%s %s (%s)", mark, e.Name, humanize.Bytes(uint64(e.Size)))
			if e.Info != nil {
				line += fmt.Sprintf(" [%s]", e.Info.Duration.Round(time.Millisecond))
			}
			fmt.Println(line)
		}
		fmt.Println("\nSound directory:", resp.SoundDir)
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Rescan the sound directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Sounds map[string]string `json:"sounds"`
		}
		if err := apiCall("POST", "/server/sound/scan", nil, &resp); err != nil {
			return err
		}
		fmt.Printf("Scanned %d sounds\n", len(resp.Sounds))
		return nil
	},
}
