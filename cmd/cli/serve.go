package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/waveprint/mixid/internal/monitor"
)

const shutdownTimeout = 5 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor HTTP server (stats, metrics, progress websocket)",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		addr := serveAddr
		if addr == "" {
			addr = env.MonitorAddr
		}
		if addr == "" {
			addr = ":8089"
		}

		srv := monitor.NewServer(addr, store)
		srv.Start()
		fmt.Printf("monitor server listening on %s\n", addr)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (default from MIXID_MONITOR_ADDR or :8089)")
	rootCmd.AddCommand(serveCmd)
}
