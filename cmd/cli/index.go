package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/waveprint/mixid/internal/features"
	"github.com/waveprint/mixid/internal/indexer"
	"github.com/waveprint/mixid/internal/storage"
)

var (
	indexMode      string
	indexLimit     int
	indexWorkers   int
	indexBackupS3  bool
	indexBackupKey string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Fingerprint unindexed tracks in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		// Validate the backup target before the index pass so a bad
		// bucket fails fast instead of after hours of extraction.
		var uploader *storage.S3Uploader
		if indexBackupS3 {
			if env.S3Bucket == "" {
				return fmt.Errorf("--backup-s3 requires MIXID_S3_BUCKET to be set")
			}
			uploader, err = storage.NewS3Uploader(env.S3Region, env.S3Bucket, env.S3BaseURL)
			if err != nil {
				return err
			}
			if err := uploader.CheckBucketAccess(cmd.Context()); err != nil {
				return err
			}
		}

		fpCfg := fingerprintConfig()
		summarizer := features.NewSummarizer(fpCfg.SampleRate, 2048)
		ix := indexer.New(store, newLoader(), fpCfg, summarizer)

		workers := indexWorkers
		if workers < 1 {
			workers = runtime.NumCPU() - 1
			if workers < 1 {
				workers = 1
			}
		}

		result, err := ix.Index(context.Background(), indexer.Options{
			Mode:    indexMode,
			Limit:   indexLimit,
			Workers: workers,
		}, func(p indexer.Progress) {
			fmt.Printf("\r%d/%d indexed (%d errors) — elapsed %s, eta %s",
				p.Indexed, p.Total, p.Errors, p.Elapsed.Round(1e9), p.ETA.Round(1e9))
		})
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Printf("Indexed %d tracks in %s\n", result.Indexed, result.Elapsed.Round(1e9))
		for _, f := range result.Errors {
			fmt.Printf("  failed: track %d (%s): %v\n", f.TrackID, f.Filename, f.Err)
		}

		if uploader != nil {
			key := indexBackupKey
			if key == "" {
				key = "post-index"
			}
			uploadResult, err := store.Export(cmd.Context(), uploader, key)
			if err != nil {
				return err
			}
			fmt.Printf("Backup uploaded to %s (%d bytes)\n", uploadResult.URL, uploadResult.Size)
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexMode, "mode", "", "Only index tracks whose mode column equals this value")
	indexCmd.Flags().IntVar(&indexLimit, "limit", 0, "Limit the number of tracks indexed in this run (0 = no limit)")
	indexCmd.Flags().IntVar(&indexWorkers, "workers", 0, "Parallel extraction workers (0 = cpu_count-1)")
	indexCmd.Flags().BoolVar(&indexBackupS3, "backup-s3", false, "Snapshot the database and upload it to S3 after indexing")
	indexCmd.Flags().StringVar(&indexBackupKey, "backup-key", "", "Object key for the S3 backup (default: post-index)")
}
