package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/sentinel/pkg/api"
	"github.com/cuemby/sentinel/pkg/engine"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the health-checking engine as a standalone process",
	Long: `serve loads a manifest describing one engine instance, starts its
active-check scheduler, and exposes /targets, /targets/status, and /metrics
over HTTP until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("file", "f", "", "manifest YAML file (required)")
	serveCmd.Flags().String("listen", "127.0.0.1:9191", "admin/metrics HTTP listen address")
	_ = serveCmd.MarkFlagRequired("file")
}

func runServe(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	listen, _ := cmd.Flags().GetString("listen")

	m, err := loadManifest(filename)
	if err != nil {
		return err
	}
	if m.Listen != "" {
		listen = m.Listen
	}

	cfg, err := m.toEngineConfig()
	if err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	s, closeStore, err := openStore(m)
	if err != nil {
		return err
	}
	defer closeStore()

	eng, err := engine.New(cfg, s)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	ctx := context.Background()
	for _, t := range m.Targets {
		if err := eng.AddTarget(ctx, t.IP, t.Port, t.Hostname, t.HostHeader, t.Healthy); err != nil {
			return fmt.Errorf("preload target %s:%d: %w", t.IP, t.Port, err)
		}
	}

	if err := eng.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	fmt.Printf("✓ Engine %q started (%d targets preloaded)\n", cfg.Name, len(m.Targets))

	srv := api.NewServer(eng)
	errCh := make(chan error, 1)
	httpServer := &http.Server{Addr: listen, Handler: srv.Handler()}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin server error: %w", err)
		}
	}()
	fmt.Printf("✓ Admin/metrics endpoint: http://%s\n", listen)
	fmt.Println("Sentinel is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}

	_ = httpServer.Shutdown(context.Background())
	eng.Stop()
	fmt.Println("✓ Shutdown complete")
	return nil
}

func openStore(m manifest) (store.Store, func(), error) {
	if m.Store == "bolt" {
		path := m.BoltPath
		if path == "" {
			path = "sentinel.db"
		}
		bs, err := store.NewBoltStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt store: %w", err)
		}
		return bs, func() { closeQuietly(bs) }, nil
	}
	return store.NewMemStore(), func() {}, nil
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		log.WithComponent("cmd").Warn().Err(err).Msg("error closing store")
	}
}
