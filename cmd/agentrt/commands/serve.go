package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/agentrt/runtime/internal/app"
	"github.com/agentrt/runtime/internal/config"
	"github.com/agentrt/runtime/internal/logging"
	"github.com/agentrt/runtime/internal/rpcapi"
)

var (
	serveListen    string
	serveMetrics   string
	serveDataDir   string
	serveWorkspace string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the runtime's HTTP/SSE server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Address to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveMetrics, "metrics-listen", "127.0.0.1:9090", "Address for the Prometheus /metrics endpoint")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Directory for the event store and session storage (overrides config)")
	serveCmd.Flags().StringVar(&serveWorkspace, "workspace", "", "Workspace root directory (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	if serveDataDir != "" {
		cfg.DataDir = serveDataDir
	}
	if serveWorkspace != "" {
		cfg.WorkspaceRoot = serveWorkspace
	}

	ctx := context.Background()
	registry := prometheus.NewRegistry()

	// Registers a real sampling/span-context-propagating TracerProvider
	// in place of otel's global no-op default, so the scheduler's
	// otel.Tracer calls produce spans with valid trace ids even though
	// no exporter is wired yet (see DESIGN.md for the Open Question this
	// leaves for an operator who wants to ship spans somewhere).
	tp := sdktrace.NewTracerProvider()
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logging.Logger.Warn().Err(err).Msg("agentrt: shutting down tracer provider")
		}
	}()
	otel.SetTracerProvider(tp)

	rt, err := app.New(ctx, cfg, registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logging.Logger.Warn().Err(err).Msg("agentrt: closing runtime")
		}
	}()

	rpcCfg := rpcapi.DefaultConfig()
	rpcCfg.Listen = cfg.Listen
	srv := rpcapi.New(rpcCfg, rt.Registry(), rt.Hub(), rt.Store(), rt.CreateSession)
	srv.SetMCPStatusFunc(rt.MCPStatus)
	srv.SetMCPControlFuncs(rt.ConnectMcpServer, rt.DisconnectMcpServer)

	metricsSrv := &http.Server{
		Addr:    serveMetrics,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	go func() {
		logging.Logger.Info().Str("addr", serveMetrics).Msg("agentrt: metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Error().Err(err).Msg("agentrt: metrics server error")
		}
	}()

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal().Err(err).Msg("agentrt: rpc server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info().Msg("agentrt: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Error().Err(err).Msg("agentrt: rpc server shutdown error")
	}
	_ = metricsSrv.Shutdown(shutdownCtx)

	logging.Logger.Info().Msg("agentrt: stopped")
	return nil
}
