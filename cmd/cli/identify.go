package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waveprint/mixid/internal/errors"
	"github.com/waveprint/mixid/internal/features"
	"github.com/waveprint/mixid/internal/fingerprint"
	"github.com/waveprint/mixid/internal/matcher"
	"github.com/waveprint/mixid/internal/models"
)

var (
	identifyTopN       int
	identifyMinMatches int
)

var identifyCmd = &cobra.Command{
	Use:   "identify FILE",
	Short: "Identify a single audio clip against the fingerprint database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		fpCfg := fingerprintConfig()
		loader := newLoader()

		samples, err := loader.Load(ctx, args[0], fpCfg.SampleRate, nil, nil)
		if err != nil {
			return err
		}

		extractor := fingerprint.NewExtractor(fpCfg)
		peaks := extractor.ExtractPeaks(extractor.Spectrogram(samples))
		fps := fingerprint.Encode(fpCfg, peaks)

		stage1Cfg := matcher.DefaultStage1Config()
		if identifyMinMatches > 0 {
			stage1Cfg.MinMatches = identifyMinMatches
		}
		stage1 := matcher.NewStage1(store, stage1Cfg)

		matches, err := stage1.Match(ctx, fps)
		if err != nil {
			return err
		}

		if len(matches) == 0 {
			summarizer := features.NewSummarizer(fpCfg.SampleRate, 2048)
			stage2 := matcher.NewStage2(store, summarizer, loader, matcher.DefaultStage2Config(fpCfg.SampleRate))
			match, ok, err := stage2.MatchSegment(ctx, samples)
			if err != nil && !errors.IsNoMatch(err) {
				return err
			}
			if !ok {
				fmt.Println("No matches found.")
				return nil
			}
			printMatch(1, match)
			return nil
		}

		n := identifyTopN
		if n <= 0 || n > len(matches) {
			n = len(matches)
		}
		for i, m := range matches[:n] {
			printMatch(i+1, m)
		}
		return nil
	},
}

func init() {
	identifyCmd.Flags().IntVar(&identifyTopN, "top-n", 5, "Maximum number of candidate matches to print")
	identifyCmd.Flags().IntVar(&identifyMinMatches, "min-matches", 0, "Override the minimum hash matches required per cluster")
}

func printMatch(rank int, m models.Match) {
	fmt.Printf("%d. %s - %s (%.0f%% confidence, %d hashes)\n", rank, m.Artist, m.Title, m.Confidence*100, m.MatchCount)
}
