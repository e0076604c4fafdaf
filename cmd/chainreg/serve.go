package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/clock"
	"github.com/alfredjeanlab/chainreg/internal/config"
	"github.com/alfredjeanlab/chainreg/internal/content"
	"github.com/alfredjeanlab/chainreg/internal/events"
	"github.com/alfredjeanlab/chainreg/internal/ledger"
	"github.com/alfredjeanlab/chainreg/internal/notify"
	"github.com/alfredjeanlab/chainreg/internal/reconcile"
	"github.com/alfredjeanlab/chainreg/internal/server"
	"github.com/alfredjeanlab/chainreg/internal/store"
	"github.com/alfredjeanlab/chainreg/internal/store/postgres"
	"github.com/alfredjeanlab/chainreg/internal/txbuild"
	"github.com/alfredjeanlab/chainreg/internal/workflow"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

var (
	serveConfirm bool
	serveDebug   bool
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the chainreg server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if serveDebug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		node := ledger.NewClient(cfg.NodeURL, httpClient)

		// Open the run journal.
		var journal store.Store
		if cfg.DatabaseURL != "" {
			pg, err := postgres.New(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			journal = pg
			logger.Info("run journal in postgres")
		} else {
			journal = store.NewMemory()
			logger.Info("run journal in memory (CHAINREG_DATABASE_URL not set)")
		}

		// Create event publishers. The SSE hub and the gRPC health reporter
		// always listen; NATS is optional.
		hub := server.NewHub()
		healthSrv := health.NewServer()
		publisher := events.MultiPublisher{hub, server.NewHealthReporter(healthSrv)}
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				hub.Close()
				journal.Close()
				return err
			}
			publisher = append(publisher, pub)
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("events disabled (CHAINREG_NATS_URL not set)")
		}

		// Reconciliation.
		rec := reconcile.New(node, reconcile.Options{
			ContractAddress: cfg.ContractAddress,
			ContractName:    cfg.ContractName,
			Sender:          cfg.SenderAddress,
			Concurrency:     cfg.ReadConcurrency,
			RPS:             cfg.ReadRPS,
		}, logger)
		heights := reconcile.NewHeights(node, cfg.FallbackHeight, logger)
		poller := reconcile.NewPoller(rec, heights, publisher, cfg.PollInterval, cfg.TicketOwner, logger)
		if cfg.PollInterval > 0 {
			poller.Start()
			logger.Info("reconcile poller started", "interval", cfg.PollInterval)
		} else {
			logger.Info("reconcile poller disabled, refreshing on demand")
		}

		queue := notify.New(clock.Real(), cfg.NotificationTTL, publisher, logger)

		deps, err := newWorkflowDeps(cmd.Context(), cfg, node, rec, heights, queue, journal, publisher, httpClient, logger)
		if err != nil {
			poller.Stop()
			publisher.Close()
			journal.Close()
			return err
		}

		srv := server.New(server.Options{
			Snapshots:       poller,
			Tickets:         rec,
			Notifications:   queue,
			Workflows:       deps,
			Runs:            journal,
			Hub:             hub,
			Network:         cfg.Network,
			ContractAddress: cfg.ContractAddress,
			ContractName:    cfg.ContractName,
			TicketOwner:     cfg.TicketOwner,
			Logger:          logger,
		})

		// Start the optional gRPC health listener.
		var grpcServer *grpc.Server
		if cfg.GRPCAddr != "" {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				poller.Stop()
				publisher.Close()
				journal.Close()
				return err
			}
			grpcServer = server.NewGRPCServer(healthSrv)
			go func() {
				logger.Info("gRPC health server listening", "addr", cfg.GRPCAddr)
				if err := grpcServer.Serve(lis); err != nil {
					logger.Error("gRPC server error", "err", err)
				}
			}()
		}

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           server.RecoveryMiddleware(srv.NewHTTPHandler(cfg.AuthToken)),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		logger.Info("chainreg server started",
			"network", cfg.Network,
			"contract", cfg.ContractAddress+"."+cfg.ContractName,
			"http_addr", cfg.HTTPAddr,
			"grpc_addr", cfg.GRPCAddr,
			"workflows", deps != nil,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		poller.Stop()
		logger.Info("reconcile poller stopped")

		if grpcServer != nil {
			grpcServer.GracefulStop()
			logger.Info("gRPC server stopped")
		}

		// Closing the hub first ends the open event streams, which would
		// otherwise hold Shutdown until its deadline.
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := journal.Close(); err != nil {
			logger.Error("error closing journal", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// newWorkflowDeps assembles the workflow collaborators. It returns nil when
// no signer key is configured; the server then runs read-only.
func newWorkflowDeps(
	ctx context.Context,
	cfg *config.Config,
	node *ledger.Client,
	rec *reconcile.Reconciler,
	heights *reconcile.Heights,
	queue *notify.Queue,
	journal store.Store,
	publisher events.Publisher,
	httpClient *http.Client,
	logger *slog.Logger,
) (*workflow.Deps, error) {
	if cfg.SignerKey == "" {
		logger.Info("workflows disabled (CHAINREG_SIGNER_KEY not set)")
		return nil, nil
	}
	keySigner, err := ledger.NewKeySigner(cfg.SignerKey)
	if err != nil {
		return nil, err
	}
	var signer ledger.Signer = keySigner
	if serveConfirm {
		signer = ledger.NewPromptSigner(keySigner)
		logger.Info("every signature requires confirmation on this terminal")
	}

	var cs content.Store
	if cfg.ContentS3Bucket != "" {
		s3, err := content.NewS3Store(ctx, cfg.ContentS3Bucket, cfg.ContentS3Prefix, cfg.ContentS3Region, cfg.ContentS3Endpoint)
		if err != nil {
			return nil, err
		}
		cs = s3
		logger.Info("content store in S3", "bucket", cfg.ContentS3Bucket, "prefix", cfg.ContentS3Prefix)
	} else {
		cs = content.NewHTTPStore(cfg.ContentURL, cfg.ContentPinPath, cfg.ContentToken, httpClient)
		logger.Info("content store over HTTP", "url", cfg.ContentURL)
	}

	logger.Info("workflows enabled", "sender", cfg.SenderAddress, "public_key", keySigner.PublicKey())
	return &workflow.Deps{
		Uploader:    content.NewUploader(cs, clock.Real(), logger),
		Builder:     txbuild.NewBuilder(cfg.ContractAddress, cfg.ContractName),
		Submitter:   ledger.NewSubmitter(signer, node, logger),
		Events:      rec,
		Heights:     heights,
		Notifier:    queue,
		Journal:     journal,
		Publisher:   publisher,
		Clock:       clock.Real(),
		Logger:      logger,
		Sender:      cfg.SenderAddress,
		GatewayURL:  cfg.GatewayURL,
		ExplorerURL: cfg.ExplorerURL,
		Network:     cfg.Network,
	}, nil
}

func init() {
	serveCmd.Flags().BoolVar(&serveConfirm, "confirm", false, "ask on this terminal before signing each contract call")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "log at debug level")
}
