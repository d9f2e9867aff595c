package dokvs

import (
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/mundrapranay/silhouette-db/internal/crypto"
)

// DefaultExpectedBinSize is the target number of keys per bin for the
// cluster variants.
const DefaultExpectedBinSize = 1 << 14

// Option configures an instance built by New.
type Option func(*settings)

type settings struct {
	parallel        bool
	reader          io.Reader
	logger          hclog.Logger
	prfName         string
	expectedBinSize int
}

func defaultSettings() settings {
	return settings{
		logger:          hclog.NewNullLogger(),
		prfName:         crypto.PRFBlake3,
		expectedBinSize: DefaultExpectedBinSize,
	}
}

// WithParallel fans position derivation and per-bin work out over
// GOMAXPROCS goroutines.
func WithParallel(parallel bool) Option {
	return func(s *settings) { s.parallel = parallel }
}

// WithRandom sets the entropy source for the random elements drawn
// during doubly oblivious encoding. The default is crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(s *settings) { s.reader = r }
}

// WithLogger sets the logger used for encode diagnostics.
func WithLogger(logger hclog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPRF selects the keyed PRF by name (see crypto.PRFByName).
func WithPRF(name string) Option {
	return func(s *settings) { s.prfName = name }
}

// WithExpectedBinSize sets the target bin occupancy of cluster variants.
func WithExpectedBinSize(size int) Option {
	return func(s *settings) { s.expectedBinSize = size }
}
