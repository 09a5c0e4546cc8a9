package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database size and indexing coverage",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats()
		if err != nil {
			return err
		}

		fmt.Printf("Tracks:         %d\n", stats.TotalTracks)
		fmt.Printf("Indexed:        %d\n", stats.IndexedTracks)
		fmt.Printf("Fingerprints:   %d\n", stats.TotalFingerprints)
		fmt.Printf("Avg per track:  %.1f\n", stats.AvgPerTrack)
		return nil
	},
}
