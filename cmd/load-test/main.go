package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	flag "github.com/spf13/pflag"

	"github.com/mundrapranay/silhouette-db/pkg/client"
)

var (
	serverAddr    = flag.String("server", "127.0.0.1:9090", "Server address (host:port)")
	numTables     = flag.Int("tables", 10, "Number of tables published concurrently")
	pairsPerTable = flag.Int("pairs", 1000, "Number of key-value pairs per table")
	dokvsType     = flag.String("type", "", "DOKVS variant; empty uses the server default")
	queriesPerSec = flag.Float64("qps", 10.0, "Queries per second")
	lookupRatio   = flag.Float64("lookup-ratio", 0.5, "Fraction of queries sent as server-side lookups")
	duration      = flag.Duration("duration", 30*time.Second, "Query phase duration")
)

// float64ToBytes converts a float64 to 8-byte little-endian bytes
func float64ToBytes(f float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
	return buf
}

type counters struct {
	ok, failed atomic.Int64
	nanos      atomic.Int64
}

func (c *counters) record(start time.Time, err error) {
	if err != nil {
		c.failed.Add(1)
		return
	}
	c.ok.Add(1)
	c.nanos.Add(time.Since(start).Nanoseconds())
}

func (c *counters) avg() time.Duration {
	if n := c.ok.Load(); n > 0 {
		return time.Duration(c.nanos.Load() / n)
	}
	return 0
}

func tableName(i int) string { return fmt.Sprintf("load-%d", i) }

func keyName(table, i int) string { return fmt.Sprintf("t%d-key-%05d", table, i) }

func main() {
	flag.Parse()
	logger := hclog.New(&hclog.LoggerOptions{Name: "load-test"})
	ctx := context.Background()

	logger.Info("configuration", "server", *serverAddr, "tables", *numTables, "pairs", *pairsPerTable,
		"type", *dokvsType, "qps", *queriesPerSec, "duration", *duration)

	c, err := client.NewClient(*serverAddr)
	if err != nil {
		logger.Error("failed to create client", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	// Phase 1: concurrent publishes
	var publishes counters
	var wg sync.WaitGroup
	publishStart := time.Now()
	for t := 0; t < *numTables; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			pairs := make(map[string][]byte, *pairsPerTable)
			for i := 0; i < *pairsPerTable; i++ {
				pairs[keyName(t, i)] = float64ToBytes(float64(i) * 0.12345)
			}
			start := time.Now()
			_, err := c.Publish(ctx, tableName(t), pairs, &client.PublishOptions{Type: *dokvsType})
			publishes.record(start, err)
			if err != nil {
				logger.Warn("publish failed", "table", tableName(t), "error", err)
			}
		}(t)
	}
	wg.Wait()
	logger.Info("publish phase done", "completed", publishes.ok.Load(), "failed", publishes.failed.Load(),
		"duration", time.Since(publishStart), "avg", publishes.avg())

	// Phase 2: queries at a fixed rate
	var gets, lookups counters
	interval := time.Duration(float64(time.Second) / *queriesPerSec)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()
	deadline := time.After(*duration)
	queryStart := time.Now()

	var inflight sync.WaitGroup
loop:
	for {
		select {
		case <-ticker.C:
			t := rand.IntN(max(*numTables, 1))
			key := keyName(t, rand.IntN(max(*pairsPerTable, 1)))
			lookup := rand.Float64() < *lookupRatio
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				qctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()
				start := time.Now()
				if lookup {
					_, err := c.Lookup(qctx, tableName(t), key)
					lookups.record(start, err)
				} else {
					_, err := c.Get(qctx, tableName(t), key)
					gets.record(start, err)
				}
			}()
		case <-progress.C:
			logger.Info("progress", "elapsed", time.Since(queryStart).Round(time.Second),
				"gets", gets.ok.Load(), "lookups", lookups.ok.Load(),
				"failed", gets.failed.Load()+lookups.failed.Load())
		case <-deadline:
			break loop
		}
	}
	inflight.Wait()
	elapsed := time.Since(queryStart)

	total := gets.ok.Load() + gets.failed.Load() + lookups.ok.Load() + lookups.failed.Load()
	logger.Info("query phase done",
		"total", total,
		"qps", float64(total)/elapsed.Seconds(),
		"gets", gets.ok.Load(), "get_failed", gets.failed.Load(), "get_avg", gets.avg(),
		"lookups", lookups.ok.Load(), "lookup_failed", lookups.failed.Load(), "lookup_avg", lookups.avg())

	for t := 0; t < *numTables; t++ {
		if err := c.Delete(ctx, tableName(t)); err != nil {
			logger.Warn("cleanup failed", "table", tableName(t), "error", err)
		}
	}

	if publishes.failed.Load() > 0 || gets.failed.Load() > 0 || lookups.failed.Load() > 0 {
		logger.Warn("load test completed with failures")
		os.Exit(1)
	}
	logger.Info("load test passed")
}
