// Command blockscout-mcp serves Blockscout explorer data to AI agents over
// MCP (stdio or streamable HTTP) and an optional REST façade.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/blockscout"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/cache"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/config"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/logging"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/observability"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/server"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/sizeguard"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/tools"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/transport"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/web3"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 10 * time.Second

type flags struct {
	configPath string
	http       bool
	rest       bool
	addr       string
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:          "blockscout-mcp",
		Short:        "MCP server for Blockscout explorers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&f.configPath, "config", "", "path to a YAML configuration file")
	cmd.Flags().BoolVar(&f.http, "http", false, "serve MCP over streamable HTTP instead of stdio")
	cmd.Flags().BoolVar(&f.rest, "rest", false, "also serve the REST API (requires --http)")
	cmd.Flags().StringVar(&f.addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return cmd
}

// loadConfig applies explicitly set flags on top of file and environment
// configuration
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("http") && f.http {
		cfg.Server.Mode = config.ModeHTTP
	}
	if cmd.Flags().Changed("rest") {
		cfg.Server.EnableREST = f.rest
	}
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if cfg.Server.EnableREST && cfg.Server.Mode != config.ModeHTTP {
		return nil, errors.New("--rest requires --http")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.Init(logging.Options{Level: level, Format: cfg.Log.Format})

	metrics := observability.NoopMetrics()
	if cfg.Observability.MetricsEnabled {
		provider, err := observability.NewMetricsProvider(observability.MetricsConfig{
			ServiceName:    "blockscout-mcp",
			ServiceVersion: version,
			Namespace:      cfg.Observability.MetricsNamespace,
		})
		if err != nil {
			return err
		}
		metrics = provider
	}

	tracing, err := observability.NewTracingProvider(observability.TracingConfig{
		ServiceName:    "blockscout-mcp",
		ServiceVersion: version,
		ExporterType:   observability.ExporterType(cfg.Observability.TracingExporter),
		Endpoint:       cfg.Observability.TracingEndpoint,
		Insecure:       cfg.Observability.TracingInsecure,
		SampleRate:     cfg.Observability.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", logging.ErrorField(err))
		}
	}()

	srv, pool := buildServer(cfg, logger, metrics)
	defer pool.Close()
	defer srv.Shutdown()

	logger.Info("starting blockscout-mcp",
		logging.String("version", version),
		logging.String("mode", string(cfg.Server.Mode)),
	)
	if cfg.Server.Mode == config.ModeHTTP {
		return serveHTTP(ctx, cfg, srv, logger)
	}
	return serveStdio(ctx, srv, logger)
}

// buildServer wires upstream clients, caches and tools into a Server
func buildServer(cfg *config.Config, logger logging.Logger, metrics observability.MetricsProvider) (*server.Server, *web3.Pool) {
	bc := cfg.Blockscout
	client := blockscout.NewClient(blockscout.ClientOptions{
		APIKey:            bc.APIKey,
		UserAgent:         bc.UserAgent,
		MaxRetries:        bc.MaxRetries,
		RetryInterval:     bc.RetryInterval,
		RequestsPerSecond: bc.RateLimit.RequestsPerSecond,
		Burst:             bc.RateLimit.Burst,
		Metrics:           metrics,
		Logger:            logger,
	})
	chains := blockscout.NewRegistry(client, bc.ChainscoutURL, bc.ChainscoutTimeout, cfg.Cache.ChainTTL, metrics)
	pool := web3.NewPool(chains, web3.PoolOptions{
		Timeout:   cfg.RPC.Timeout,
		UserAgent: bc.UserAgent,
		Metrics:   metrics,
	})

	pc := cfg.Pagination
	toolbox := (&tools.Toolbox{
		Explorer:  blockscout.NewExplorer(client, chains, bc.Timeout),
		Chains:    chains,
		Names:     blockscout.NewBENS(client, bc.BENSURL, bc.BENSTimeout),
		Metadata:  blockscout.NewMetadata(client, bc.MetadataURL, bc.MetadataTimeout),
		Contracts: pool,
		Guard:     sizeguard.New(pc.ResponseSizeLimit),
		Settings: tools.Settings{
			LogsPageSize:            pc.LogsPageSize,
			NFTPageSize:             pc.NFTPageSize,
			AdvancedFiltersPageSize: pc.AdvancedFiltersPageSize,
			MaxAdaptivePages:        pc.MaxAdaptivePages,
			ProgressInterval:        pc.ProgressInterval,
			ExpectedRequestDuration: bc.Timeout / 4,
		},
		Version: version,
		Logger:  logger,
	}).WithContractCache(cache.NewLRU[map[string]interface{}]("contracts", cfg.Cache.ContractsMaxSize, cfg.Cache.ContractsTTL, metrics))

	registry := tools.NewRegistry(metrics)
	if err := toolbox.Register(registry); err != nil {
		// the tool table is static, a failure here is a programming error
		panic(err)
	}

	return server.New(registry,
		server.WithName("blockscout-mcp"),
		server.WithTitle("Blockscout"),
		server.WithVersion(version),
		server.WithInstructions(tools.ServerInstructions(version)),
		server.WithLogger(logger),
		server.WithMetrics(metrics),
	), pool
}

func serveStdio(ctx context.Context, srv *server.Server, logger logging.Logger) error {
	t, err := transport.NewTransport(transport.TransportConfig{
		Type: transport.TransportTypeStdio,
		ErrorHandler: func(err error) {
			logger.Error("stdio transport error", logging.ErrorField(err))
		},
	}, srv)
	if err != nil {
		return err
	}
	return t.Start(ctx)
}

func serveHTTP(ctx context.Context, cfg *config.Config, srv *server.Server, logger logging.Logger) error {
	router := server.NewRouter(srv, server.RouterOptions{
		EnableREST: cfg.Server.EnableREST,
		HTTP: server.HTTPOptions{
			SessionTimeout: cfg.Server.SessionTimeout,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		},
	})
	defer router.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", logging.String("addr", cfg.Server.Addr), logging.Bool("rest", cfg.Server.EnableREST))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	srv.Shutdown()
	return httpServer.Shutdown(shutdownCtx)
}
