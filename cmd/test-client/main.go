package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	flag "github.com/spf13/pflag"

	"github.com/mundrapranay/silhouette-db/pkg/client"
)

var (
	serverAddr = flag.String("server", "127.0.0.1:9090", "Server address (host:port)")
	numPairs   = flag.Int("pairs", 150, "Number of key-value pairs to publish")
	table      = flag.String("table", "test-table", "Table name")
	dokvsType  = flag.String("type", "", "DOKVS variant; empty uses the server default")
	backend    = flag.String("backend", "", "Table backend; empty uses the server default")
	testKey    = flag.String("key", "", "Specific key to query (optional)")
	keep       = flag.Bool("keep", false, "Keep the table after the test")
)

// float64ToBytes converts a float64 to 8-byte little-endian bytes
func float64ToBytes(f float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
	return buf
}

// bytesToFloat64 converts 8-byte little-endian bytes to float64
func bytesToFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func main() {
	flag.Parse()
	logger := hclog.New(&hclog.LoggerOptions{Name: "test-client"})
	ctx := context.Background()

	logger.Info("connecting", "server", *serverAddr)
	c, err := client.NewClient(*serverAddr)
	if err != nil {
		logger.Error("failed to create client", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	pairs := make(map[string][]byte)
	testValues := make(map[string]float64)
	for i := 0; i < *numPairs; i++ {
		key := fmt.Sprintf("test-key-%03d", i)
		value := float64(i) * 0.12345
		testValues[key] = value
		pairs[key] = float64ToBytes(value)
	}

	startTime := time.Now()
	resp, err := c.Publish(ctx, *table, pairs, &client.PublishOptions{Type: *dokvsType, Backend: *backend})
	if err != nil {
		logger.Error("failed to publish", "error", err)
		os.Exit(1)
	}
	publishDuration := time.Since(startTime)
	logger.Info("published", "table", *table, "backend", resp.Backend, "type", resp.Type,
		"pairs", resp.Pairs, "bytes", resp.BlobBytes, "index", resp.Index, "duration", publishDuration)

	keysToQuery := []string{*testKey}
	if *testKey == "" && *numPairs > 0 {
		keysToQuery = []string{
			fmt.Sprintf("test-key-%03d", 0),
			fmt.Sprintf("test-key-%03d", *numPairs/2),
			fmt.Sprintf("test-key-%03d", *numPairs-1),
		}
	}

	fetchStart := time.Now()
	t, err := c.Fetch(ctx, *table)
	if err != nil {
		logger.Error("failed to fetch", "error", err)
		os.Exit(1)
	}
	logger.Info("fetched table", "duration", time.Since(fetchStart))

	failCount := 0
	for _, key := range keysToQuery {
		expected, exists := testValues[key]
		if !exists {
			logger.Warn("key was not published", "key", key)
			failCount++
			continue
		}

		local, err := t.Get(key)
		if err != nil {
			logger.Error("local decode failed", "key", key, "error", err)
			failCount++
			continue
		}
		remote, err := c.Lookup(ctx, *table, key)
		if err != nil {
			logger.Error("lookup failed", "key", key, "error", err)
			failCount++
			continue
		}

		got, viaServer := bytesToFloat64(local), bytesToFloat64(remote[0])
		if got != expected || viaServer != expected {
			logger.Error("value mismatch", "key", key, "expected", expected, "local", got, "lookup", viaServer)
			failCount++
			continue
		}
		logger.Info("value matches", "key", key, "value", got)
	}

	if !*keep {
		if err := c.Delete(ctx, *table); err != nil {
			logger.Error("failed to delete table", "error", err)
			failCount++
		}
	}

	if failCount > 0 {
		logger.Error("some checks failed", "failed", failCount, "queried", len(keysToQuery))
		os.Exit(1)
	}
	logger.Info("all checks passed", "queried", len(keysToQuery), "publish_duration", publishDuration)
}
