// Command mixid identifies tracks and DJ mixes against a local fingerprint
// database. See the subcommand files in this package for stats, index,
// identify, analyze, clear, and serve.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/waveprint/mixid/internal/audio"
	"github.com/waveprint/mixid/internal/config"
	"github.com/waveprint/mixid/internal/fingerprint"
	"github.com/waveprint/mixid/internal/logger"
	"github.com/waveprint/mixid/internal/storage"
	"github.com/waveprint/mixid/internal/telemetry"
)

var (
	dbPath        string
	sampleRate    int
	verbose       bool
	env           config.Engine
	stopTelemetry telemetry.Shutdown
)

var rootCmd = &cobra.Command{
	Use:   "mixid",
	Short: "mixid identifies tracks inside DJ mixes from audio fingerprints",
	Long: `mixid builds and queries a local spectral-peak fingerprint database to
identify tracks, either a single clip ("identify") or every track mixed
into a longer recording ("analyze").`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel := env.LogLevel
		if verbose {
			logLevel = "debug"
		}
		if err := logger.Initialize(logLevel, env.LogFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
			os.Exit(1)
		}
		stop, err := telemetry.Init(telemetry.Config{
			ServiceName:  "mixid",
			OTLPEndpoint: env.OTLPEndpoint,
			SampleRatio:  env.TraceSampleRatio,
		})
		if err != nil {
			logger.Log.Warn("tracing disabled: tracer initialization failed")
		}
		stopTelemetry = stop
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopTelemetry != nil {
			_ = stopTelemetry(context.Background())
		}
		_ = logger.Close()
	},
}

func init() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "note: .env file not found, using environment variables")
	}
	env = config.FromEnv()

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", env.DBPath, "Path to the fingerprint database file")
	rootCmd.PersistentFlags().IntVar(&sampleRate, "sample-rate", env.SampleRate, "Analysis sample rate in Hz")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(clearCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the fingerprint database at dbPath, attaching a Redis
// posting cache when REDIS_HOST is set.
func openStore() (*storage.Store, error) {
	store, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if env.RedisHost != "" {
		c, err := newCache()
		if err != nil {
			logger.Log.Warn("redis posting cache unavailable, continuing without it")
		} else {
			store = store.WithCache(c)
		}
	}
	return store, nil
}

func fingerprintConfig() fingerprint.Config {
	return fingerprint.DefaultConfig(sampleRate)
}

func newLoader() *audio.Loader {
	return audio.NewLoader()
}
