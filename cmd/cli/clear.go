package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var clearForce bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all fingerprints, indexing status, and features from the database (track rows are kept)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearForce {
			fmt.Print("This will permanently delete every fingerprint and feature summary. Continue? [y/N] ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.ClearAll(); err != nil {
			return err
		}
		fmt.Println("Database cleared.")
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearForce, "force", false, "Skip the confirmation prompt")
}
