package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	flag "github.com/spf13/pflag"
	"google.golang.org/grpc"

	apiv1 "github.com/mundrapranay/silhouette-db/api/v1"
	"github.com/mundrapranay/silhouette-db/internal/config"
	"github.com/mundrapranay/silhouette-db/internal/server"
	"github.com/mundrapranay/silhouette-db/internal/store"
	"github.com/mundrapranay/silhouette-db/pkg/client"
)

var (
	configFile = flag.StringP("config", "c", "", "YAML configuration file")
	nodeID     = flag.String("node-id", "", "Unique ID for this node")
	listenAddr = flag.String("listen-addr", "", "Address to listen for Raft communication")
	grpcAddr   = flag.String("grpc-addr", "", "Address to listen for gRPC API")
	dataDir    = flag.String("data-dir", "", "Directory to store Raft logs and snapshots")
	bootstrap  = flag.Bool("bootstrap", false, "Bootstrap a new cluster (first node)")
	joinAddr   = flag.String("join", "", "gRPC address of an existing cluster member to join")
	backend    = flag.String("backend", "", "Table backend: 'dokvs' or 'kvs'")
	dokvsType  = flag.String("type", "", "DOKVS variant, e.g. H3_BLAZE_GCT")
	prf        = flag.String("prf", "", "PRF: 'blake3' or 'cshake'")
	parallel   = flag.Bool("parallel", false, "Encode tables in parallel")
	logLevel   = flag.String("log-level", "", "Log level: trace, debug, info, warn, error")
)

// loadConfig reads the config file, if any, and applies explicitly set flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(*configFile); err != nil {
			return nil, err
		}
	}

	setString := func(name string, dst *string, v string) {
		if flag.CommandLine.Changed(name) {
			*dst = v
		}
	}
	setString("node-id", &cfg.Node.NodeID, *nodeID)
	setString("listen-addr", &cfg.Node.ListenAddr, *listenAddr)
	setString("grpc-addr", &cfg.Node.GRPCAddr, *grpcAddr)
	setString("data-dir", &cfg.Node.DataDir, *dataDir)
	setString("join", &cfg.Node.Join, *joinAddr)
	setString("backend", &cfg.Dokvs.Backend, *backend)
	setString("type", &cfg.Dokvs.Type, *dokvsType)
	setString("prf", &cfg.Dokvs.PRF, *prf)
	setString("log-level", &cfg.LogLevel, *logLevel)
	if flag.CommandLine.Changed("bootstrap") {
		cfg.Node.Bootstrap = *bootstrap
	}
	if flag.CommandLine.Changed("parallel") {
		cfg.Dokvs.Parallel = *parallel
	}

	return cfg, cfg.Validate()
}

func main() {
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "dokvs-server",
		Level: hclog.Info,
	})
	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// run starts the node and blocks until SIGINT or SIGTERM. Everything it
// opens is closed before it returns.
func run(logger hclog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.SetLevel(hclog.LevelFromString(cfg.LogLevel))
	if cfg.Node.NodeID == "" {
		return fmt.Errorf("node-id is required")
	}
	logger = logger.With("node_id", cfg.Node.NodeID)

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(cfg.Node.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	s, err := store.NewStore(store.Config{
		NodeID:           cfg.Node.NodeID,
		ListenAddr:       cfg.Node.ListenAddr,
		DataDir:          cfg.Node.DataDir,
		Bootstrap:        cfg.Node.Bootstrap,
		HeartbeatTimeout: cfg.Node.HeartbeatTimeout,
		ElectionTimeout:  cfg.Node.ElectionTimeout,
		CommitTimeout:    cfg.Node.CommitTimeout,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer func() {
		if err := s.Shutdown(); err != nil {
			logger.Warn("store shutdown failed", "error", err)
		}
	}()

	srv, err := server.NewServer(s, cfg.Dokvs, server.WithLogger(logger.Named("server")))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	lis, err := net.Listen("tcp", cfg.Node.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Node.GRPCAddr, err)
	}

	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(server.RecoverPanics(logger.Named("grpc"))))
	apiv1.RegisterDokvsServiceServer(grpcSrv, srv)
	defer grpcSrv.GracefulStop()

	logger.Info("starting gRPC server", "addr", cfg.Node.GRPCAddr)
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("gRPC server stopped", "error", err)
		}
	}()

	if cfg.Node.Join != "" {
		if err := join(cfg.Node.Join, cfg.Node.NodeID, string(s.Addr())); err != nil {
			return fmt.Errorf("failed to join cluster via %s: %w", cfg.Node.Join, err)
		}
		logger.Info("joined cluster", "via", cfg.Node.Join)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := s.WaitForLeader(ctx); err != nil {
		logger.Warn("no leader yet", "error", err)
	}
	cancel()

	logger.Info("node ready", "raft", s.Addr(), "grpc", cfg.Node.GRPCAddr, "leader", s.Leader(),
		"backend", cfg.Dokvs.Backend, "type", cfg.Dokvs.Type)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	return nil
}

// join asks the member at addr to add this node as a voter.
func join(addr, nodeID, raftAddr string) error {
	c, err := client.NewClient(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.Join(ctx, nodeID, raftAddr)
}
