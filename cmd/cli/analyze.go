package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/waveprint/mixid/internal/cue"
	"github.com/waveprint/mixid/internal/features"
	"github.com/waveprint/mixid/internal/matcher"
	"github.com/waveprint/mixid/internal/mixanalyzer"
)

var (
	analyzeOutput        string
	analyzeSegmentS      float64
	analyzeOverlapS      float64
	analyzeMinMatches    int
	analyzeMinConfidence float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Identify every track mixed into a longer recording and emit a cue sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		fpCfg := fingerprintConfig()
		loader := newLoader()
		summarizer := features.NewSummarizer(fpCfg.SampleRate, 2048)

		stage1Cfg := matcher.DefaultStage1Config()
		if analyzeMinMatches > 0 {
			stage1Cfg.MinMatches = analyzeMinMatches
		}
		if analyzeMinConfidence > 0 {
			stage1Cfg.MinConfidence = analyzeMinConfidence
		}
		stage1 := matcher.NewStage1(store, stage1Cfg)
		stage2 := matcher.NewStage2(store, summarizer, loader, matcher.DefaultStage2Config(fpCfg.SampleRate))

		cfg := mixanalyzer.DefaultConfig(fpCfg.SampleRate)
		if analyzeSegmentS > 0 {
			cfg.SegmentS = analyzeSegmentS
		}
		if analyzeOverlapS > 0 {
			cfg.OverlapS = analyzeOverlapS
		}

		analyzer := mixanalyzer.New(loader, fpCfg, stage1, stage2, cfg)

		matches, err := analyzer.Analyze(context.Background(), args[0], func(p mixanalyzer.Progress) {
			fmt.Printf("\rwindow %d/%d — %d matches so far", p.WindowsDone, p.WindowsTotal, p.MatchesSoFar)
		})
		if err != nil {
			return err
		}
		fmt.Println()

		sheet := cue.Format(cue.FromMatches(matches))
		if analyzeOutput == "" {
			fmt.Println(sheet)
			return nil
		}
		return os.WriteFile(analyzeOutput, []byte(sheet+"\n"), 0o644)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "Write the cue sheet to this file instead of stdout")
	analyzeCmd.Flags().Float64Var(&analyzeSegmentS, "segment", 0, "Window length in seconds (default from config)")
	analyzeCmd.Flags().Float64Var(&analyzeOverlapS, "overlap", 0, "Window overlap in seconds (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeMinMatches, "min-matches", 0, "Override Stage-1's minimum hash matches per cluster")
	analyzeCmd.Flags().Float64Var(&analyzeMinConfidence, "min-confidence", 0, "Override Stage-1's minimum confidence threshold")
}
