package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	flag "github.com/spf13/pflag"

	"github.com/mundrapranay/silhouette-db/pkg/client"
)

var (
	leaderAddr = flag.String("leader", "127.0.0.1:9090", "gRPC address of the cluster leader")
	timeout    = flag.Duration("timeout", 10*time.Second, "Timeout per join request")
)

// This helper adds already running, unbootstrapped nodes to a cluster by
// calling Join on the leader.
//
// Usage: cluster-peer-helper --leader <grpc-addr> <peer-id>=<raft-addr> [...]
func main() {
	flag.Parse()
	logger := hclog.New(&hclog.LoggerOptions{Name: "cluster-peer-helper"})

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s --leader <grpc-addr> <peer-id>=<raft-addr> [...]\n", os.Args[0])
		os.Exit(1)
	}

	c, err := client.NewClient(*leaderAddr)
	if err != nil {
		logger.Error("failed to create client", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	failed := 0
	for _, arg := range flag.Args() {
		peerID, peerAddr, ok := strings.Cut(arg, "=")
		if !ok || peerID == "" || peerAddr == "" {
			logger.Warn("invalid peer argument, expected peer-id=raft-addr", "arg", arg)
			failed++
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		err := c.Join(ctx, peerID, peerAddr)
		cancel()
		if err != nil {
			logger.Error("failed to add peer", "peer", peerID, "addr", peerAddr, "error", err)
			failed++
			continue
		}
		logger.Info("added peer", "peer", peerID, "addr", peerAddr)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
