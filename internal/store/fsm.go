package store

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/hashicorp/raft"
)

// Command ops.
const (
	OpPut    = "PUT"
	OpDelete = "DELETE"
)

// Record is one published table: an encoded blob plus the metadata
// needed to open it.
type Record struct {
	Backend string `cbor:"1,keyasint"`
	Blob    []byte `cbor:"2,keyasint"`
	Pairs   int    `cbor:"3,keyasint"`
	// Index is the raft log index that last wrote the record.
	Index uint64 `cbor:"4,keyasint"`
}

// Command represents a single operation to be applied to the FSM.
type Command struct {
	Op     string  `cbor:"1,keyasint"`
	Table  string  `cbor:"2,keyasint"`
	Record *Record `cbor:"3,keyasint,omitempty"`
}

// FSM is the replicated table catalog. It stores opaque encoded tables
// keyed by table name.
type FSM struct {
	mu     sync.RWMutex
	tables map[string]Record
}

// NewFSM creates a new FSM instance.
func NewFSM() *FSM {
	return &FSM{
		tables: make(map[string]Record),
	}
}

// Apply applies a Raft log entry to the FSM.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := cbor.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("failed to deserialize command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case OpPut:
		if cmd.Record == nil {
			return fmt.Errorf("put command for table %s has no record", cmd.Table)
		}
		rec := *cmd.Record
		rec.Index = log.Index
		f.tables[cmd.Table] = rec
		return nil
	case OpDelete:
		delete(f.tables, cmd.Table)
		return nil
	default:
		return fmt.Errorf("unrecognized command op: %s", cmd.Op)
	}
}

// Get retrieves a table record by name.
func (f *FSM) Get(table string) (Record, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, exists := f.tables[table]
	return rec, exists
}

// Tables returns the stored table names in ascending order.
func (f *FSM) Tables() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.tables))
}

// Snapshot captures the catalog for log compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	clone := make(map[string]Record, len(f.tables))
	for k, rec := range f.tables {
		rec.Blob = slices.Clone(rec.Blob)
		clone[k] = rec
	}
	return &FSMSnapshot{tables: clone}, nil
}

// Restore replaces the catalog with a snapshot.
func (f *FSM) Restore(rc io.ReadCloser) error {
	var tables map[string]Record
	if err := cbor.NewDecoder(rc).Decode(&tables); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if tables == nil {
		tables = make(map[string]Record)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables = tables
	return nil
}

// FSMSnapshot represents a snapshot of the FSM state.
type FSMSnapshot struct {
	tables map[string]Record
}

// Persist writes the snapshot to the given sink.
func (s *FSMSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := cbor.NewEncoder(sink).Encode(s.tables); err != nil {
		sink.Cancel()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return sink.Close()
}

// Release is called when the snapshot is no longer needed.
func (s *FSMSnapshot) Release() {}
