package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/easel/internal/dispatch"
	"github.com/fentz26/easel/internal/gateway"
	"github.com/fentz26/easel/internal/history"
	"github.com/fentz26/easel/internal/presence"
	"github.com/fentz26/easel/internal/styles"
	"github.com/fentz26/easel/internal/toolapi"
)

var (
	wsAddr          string
	listenAddr      string
	dbPath          string
	redisAddr       string
	redisPassword   string
	redisDB         int
	taskTimeout     time.Duration
	pollInterval    time.Duration
	janitorInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Easel dispatch server",
	Long:  `Starts the WebSocket gateway for draw clients and the HTTP tool API for job submitters.`,
	RunE:  runServe,
}

func init() {
	homeDir, _ := os.UserHomeDir()
	defaultDB := filepath.Join(homeDir, ".easel", "easel.db")

	serveCmd.Flags().StringVar(&wsAddr, "ws", ":8080", "Listen address for the WebSocket gateway")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:8000", "Listen address for the tool API")
	serveCmd.Flags().StringVar(&dbPath, "db", defaultDB, "Path to the SQLite history database (empty disables history)")
	serveCmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for the presence mirror (empty disables)")
	serveCmd.Flags().StringVar(&redisPassword, "redis-password", "", "Redis password")
	serveCmd.Flags().IntVar(&redisDB, "redis-db", 0, "Redis database number")
	serveCmd.Flags().DurationVar(&taskTimeout, "task-timeout", 60*time.Second, "How long a dispatch waits for images")
	serveCmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "How often a waiting dispatch re-checks its task")
	serveCmd.Flags().DurationVar(&janitorInterval, "janitor-interval", 30*time.Second, "Background janitor interval (0 disables; dispatches still tick opportunistically)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Println("Starting Easel dispatch server...")

	cfg := dispatch.DefaultConfig()
	cfg.TaskTimeout = taskTimeout
	cfg.PollInterval = pollInterval
	disp := dispatch.New(cfg)

	var hist *history.Store
	if dbPath != "" {
		var err error
		hist, err = history.New(dbPath)
		if err != nil {
			return err
		}
		disp.SetRecorder(hist)
	}

	var mirror *presence.Mirror
	if redisAddr != "" {
		mirror = presence.New(redisAddr, redisPassword, redisDB)
	}

	gw := gateway.NewServer(disp, mirror, wsAddr)
	api := toolapi.NewServer(disp, hist, listenAddr)

	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	defer janitorCancel()
	if janitorInterval > 0 {
		go disp.RunJanitor(janitorCtx, janitorInterval)
	}

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	go func() {
		if err := api.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	styles.Successf("Easel up: gateway %s, tool API %s", wsAddr, listenAddr)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		log.Printf("Server error: %v", err)
		runErr = err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down tool API...")
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Printf("Tool API shutdown error: %v", err)
	}
	log.Println("Shutting down gateway...")
	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.Printf("Gateway shutdown error: %v", err)
	}

	janitorCancel()

	if mirror != nil {
		if err := mirror.Close(); err != nil {
			log.Printf("Presence close error: %v", err)
		}
	}
	if hist != nil {
		log.Println("Closing history database...")
		if err := hist.Close(); err != nil {
			log.Printf("History close error: %v", err)
		}
	}

	log.Println("Shutdown complete")
	return runErr
}
