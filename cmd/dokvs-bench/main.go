package main

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	flag "github.com/spf13/pflag"
	"github.com/zeebo/blake3"

	"github.com/mundrapranay/silhouette-db/internal/crypto"
	"github.com/mundrapranay/silhouette-db/internal/dokvs"
)

var (
	numPairs   = flag.IntP("pairs", "n", 100000, "Number of key-value pairs per table")
	valueBits  = flag.IntP("bits", "l", 64, "Value length in bits")
	numWorkers = flag.Int("workers", 1, "Number of concurrent encoders per variant")
	types      = flag.StringSlice("types", nil, "Variants to run (default: all)")
	prf        = flag.String("prf", crypto.PRFBlake3, "PRF: 'blake3' or 'cshake'")
	parallel   = flag.Bool("parallel", false, "Parallel position derivation and bin encoding")
	freeMode   = flag.Bool("free", false, "Free mode instead of doubly oblivious")
	seed       = flag.String("seed", "", "Seed for reproducible keys and randomness")
	verbose    = flag.BoolP("verbose", "v", false, "Debug logging from the encoder")
)

type result struct {
	typ     dokvs.Type
	m       int
	encode  time.Duration
	decode  time.Duration
	failed  int
	lastErr error
}

// randomSource returns the worker's entropy source: the system CSPRNG,
// or a ChaCha20 stream keyed by the seed and worker index.
func randomSource(worker int) (io.Reader, error) {
	if *seed == "" {
		return rand.Reader, nil
	}
	key := blake3.Sum256([]byte(fmt.Sprintf("%s/%d", *seed, worker)))
	return crypto.NewSeededReader(key[:])
}

func makePairs(n, l int, r *crypto.Random) map[string][]byte {
	byteL := (l + 7) / 8
	pairs := make(map[string][]byte, n)
	for i := 0; i < n; i++ {
		pairs[fmt.Sprintf("key-%d", i)] = r.Element(byteL, l)
	}
	return pairs
}

// runWorker encodes and fully decodes one table.
func runWorker(typ dokvs.Type, worker int, logger hclog.Logger) (m int, encode, decode time.Duration, err error) {
	r, err := randomSource(worker)
	if err != nil {
		return 0, 0, 0, err
	}
	pairs := makePairs(*numPairs, *valueBits, crypto.NewRandom(r))
	keys, err := dokvs.NewKeys(typ, r)
	if err != nil {
		return 0, 0, 0, err
	}
	d, err := dokvs.New(typ, *numPairs, *valueBits, keys,
		dokvs.WithPRF(*prf),
		dokvs.WithParallel(*parallel),
		dokvs.WithRandom(r),
		dokvs.WithLogger(logger))
	if err != nil {
		return 0, 0, 0, err
	}

	start := time.Now()
	storage, err := d.Encode(pairs, !*freeMode)
	if err != nil {
		return d.M(), 0, 0, err
	}
	encode = time.Since(start)

	start = time.Now()
	for k, v := range pairs {
		got, err := d.Decode(storage, k)
		if err != nil {
			return d.M(), encode, 0, err
		}
		if !bytes.Equal(got, v) {
			return d.M(), encode, 0, fmt.Errorf("decoded value mismatch for %s", k)
		}
	}
	return d.M(), encode, time.Since(start), nil
}

func runType(typ dokvs.Type, logger hclog.Logger) result {
	res := result{typ: typ}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < *numWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			m, enc, dec, err := runWorker(typ, w, logger.With("worker", w))
			mu.Lock()
			defer mu.Unlock()
			res.m = m
			if err != nil {
				res.failed++
				res.lastErr = err
				return
			}
			res.encode += enc
			res.decode += dec
		}(w)
	}
	wg.Wait()
	return res
}

func selectedTypes() ([]dokvs.Type, error) {
	if len(*types) == 0 {
		return dokvs.Types(), nil
	}
	out := make([]dokvs.Type, 0, len(*types))
	for _, name := range *types {
		t, err := dokvs.ParseType(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func main() {
	flag.Parse()

	level := hclog.Info
	if *verbose {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{Name: "dokvs-bench", Level: level})

	ts, err := selectedTypes()
	if err != nil {
		logger.Error("invalid --types", "error", err)
		os.Exit(1)
	}

	fmt.Printf("n=%d l=%d workers=%d prf=%s parallel=%v free=%v\n\n",
		*numPairs, *valueBits, *numWorkers, *prf, *parallel, *freeMode)
	fmt.Printf("%-28s %10s %8s %14s %14s %8s\n", "type", "m", "m/n", "encode/op", "decode/key", "failed")

	failures := 0
	for _, typ := range ts {
		if typ == dokvs.MegaBin && *valueBits < 40 {
			logger.Info("skipping variant", "type", typ, "reason", "needs at least 40 value bits")
			continue
		}
		res := runType(typ, logger)
		ok := *numWorkers - res.failed
		var encode, decode time.Duration
		if ok > 0 {
			encode = res.encode / time.Duration(ok)
			decode = res.decode / time.Duration(ok*max(*numPairs, 1))
		}
		fmt.Printf("%-28s %10d %8.3f %14v %14v %8d\n",
			typ, res.m, float64(res.m)/float64(max(*numPairs, 1)), encode, decode, res.failed)
		if res.lastErr != nil {
			logger.Warn("encode failures", "type", typ, "failed", res.failed, "last_error", res.lastErr)
			failures += res.failed
		}
	}

	if failures > 0 {
		os.Exit(1)
	}
}
