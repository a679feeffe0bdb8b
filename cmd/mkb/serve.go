package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mkb/internal/api"
	"mkb/internal/config"
	"mkb/internal/logging"
)

var (
	servePort          string
	serveHost          string
	serveMaxConcurrent int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP API server",
	Long: `Start the MKB HTTP API server to expose the context pipeline over HTTP.
The server provides REST endpoints for context assembly, chat completion,
intent resolution, session management, and index maintenance.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Define flags
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (defaults to server.port from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (defaults to server.host from config)")
	serveCmd.Flags().IntVar(&serveMaxConcurrent, "max-concurrent", 0, "Cap concurrent requests and shed excess load (0 disables shedding)")
}

func runServe(cmd *cobra.Command, args []string) error {
	baseDir := mustGetBaseDir()

	// The server is long-running, so logging honors the configured
	// format and level rather than the one-shot command defaults.
	cfg, err := config.LoadConfig(baseDir)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(cfg.Logging.Level),
	})

	rt := mustGetRuntime(baseDir, logger)

	// Build server address
	host := serveHost
	if host == "" {
		host = rt.cfg.Server.Host
	}
	port := servePort
	if port == "" {
		port = strconv.Itoa(rt.cfg.Server.Port)
	}
	addr := fmt.Sprintf("%s:%s", host, port)

	shedding := api.DefaultLoadSheddingConfig()
	if serveMaxConcurrent > 0 {
		shedding.Enabled = true
		shedding.MaxConcurrentRequests = serveMaxConcurrent
	}

	rt.sessions.StartJanitor()
	defer rt.sessions.Stop()

	// Create server
	server := api.NewServer(addr, api.Deps{
		Assembler: rt.assembler,
		Pipeline:  rt.pipeline,
		Sessions:  rt.sessions,
		Shedding:  shedding,
	}, logger)

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting MKB HTTP API server", map[string]interface{}{
			"addr": addr,
		})
		fmt.Printf("MKB HTTP API server listening on http://%s\n", addr)
		fmt.Println("Press Ctrl+C to stop")
		serverErr <- server.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}
	case sig := <-shutdown:
		logger.Info("Received shutdown signal", map[string]interface{}{
			"signal": sig.String(),
		})

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Error during shutdown", map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}

		logger.Info("Server stopped gracefully", nil)
	}

	return nil
}
