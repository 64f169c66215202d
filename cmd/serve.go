package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/agent-faceid/internal/database"
	"github.com/kozaktomas/agent-faceid/internal/storage"
	"github.com/kozaktomas/agent-faceid/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Agent FaceID HTTP API.
Connects to PostgreSQL, applies migrations, builds the in-memory agent index
and serves enrollment, face login and agent management endpoints.

The agent index lives in this process only. Agents enrolled or deleted with the
CLI while the server runs are not visible to index lookups until
POST /api/v1/agents/reindex is called or --reindex-interval elapses.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("warmup", false, "Prepare the engine model before accepting requests")
	serveCmd.Flags().Duration("reindex-interval", 0, "Rebuild the agent index periodically (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a := loadApp()
	defer a.close()

	if port := mustGetInt(cmd, "port"); port > 0 {
		a.cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		a.cfg.Web.Host = host
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service, err := a.roster(ctx, true)
	if err != nil {
		return err
	}

	if interval := mustGetDuration(cmd, "reindex-interval"); interval > 0 {
		if rebuilder := database.GetAgentHNSWRebuilder(); rebuilder != nil {
			go reindexLoop(ctx, interval, rebuilder, a.log)
		}
	}

	if mustGetBool(cmd, "warmup") {
		fmt.Printf("Preparing engine model %s...\n", a.cfg.Engine.Model)
		if err := a.engine().Init(ctx); err != nil {
			return fmt.Errorf("engine warmup: %w", err)
		}
	}

	var mediaDir string
	if local, ok := a.objects.(*storage.LocalStore); ok {
		mediaDir = local.Root()
	}

	server := web.NewServer(a.cfg, service, mediaDir, a.log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Agent FaceID on http://%s:%d\n", a.cfg.Web.Host, a.cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
