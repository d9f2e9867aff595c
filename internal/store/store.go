package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
)

// ErrNotLeader is returned by writes on a follower.
var ErrNotLeader = errors.New("not the leader")

// Store wraps a Raft instance and provides a clean API for operations.
type Store struct {
	raft      *raft.Raft
	fsm       *FSM
	transport *raft.NetworkTransport
	boltdbs   []*raftboltdb.BoltStore
	timeout   time.Duration
	logger    hclog.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

// Config holds configuration for initializing a Raft store.
type Config struct {
	NodeID           string
	ListenAddr       string
	DataDir          string
	Bootstrap        bool
	HeartbeatTimeout time.Duration
	ElectionTimeout  time.Duration
	CommitTimeout    time.Duration
	ApplyTimeout     time.Duration
	Logger           hclog.Logger
}

// NewStore creates and initializes a new Raft store.
func NewStore(config Config) (*Store, error) {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("store")
	fsm := NewFSM()

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(config.NodeID)
	raftConfig.HeartbeatTimeout = config.HeartbeatTimeout
	raftConfig.ElectionTimeout = config.ElectionTimeout
	raftConfig.LeaderLeaseTimeout = min(config.HeartbeatTimeout, raftConfig.LeaderLeaseTimeout)
	raftConfig.CommitTimeout = config.CommitTimeout
	raftConfig.Logger = logger.Named("raft")

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(config.DataDir, "logs"))
	if err != nil {
		return nil, fmt.Errorf("failed to create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(config.DataDir, "stable"))
	if err != nil {
		return nil, fmt.Errorf("failed to create stable store: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStoreWithLogger(config.DataDir, 3, logger.Named("snapshot"))
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	addr, err := net.ResolveTCPAddr("tcp", config.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve address: %w", err)
	}
	// An ephemeral port is only known after binding; let the transport
	// advertise the bound address.
	var advertise net.Addr = addr
	if addr.Port == 0 {
		advertise = nil
	}
	transport, err := raft.NewTCPTransportWithLogger(config.ListenAddr, advertise, 3, 10*time.Second, logger.Named("transport"))
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	r, err := raft.NewRaft(raftConfig, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create raft: %w", err)
	}

	if config.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      raft.ServerID(config.NodeID),
					Address: transport.LocalAddr(),
				},
			},
		}
		if err := r.BootstrapCluster(configuration).Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
			return nil, fmt.Errorf("failed to bootstrap cluster: %w", err)
		}
	}

	return &Store{
		raft:      r,
		fsm:       fsm,
		transport: transport,
		boltdbs:   []*raftboltdb.BoltStore{logStore, stableStore},
		timeout:   config.ApplyTimeout,
		logger:    logger,
	}, nil
}

func (s *Store) apply(cmd Command) error {
	if s.raft.State() != raft.Leader {
		return ErrNotLeader
	}
	data, err := cbor.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}
	timeout := s.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	future := s.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		if errors.Is(err, raft.ErrNotLeader) || errors.Is(err, raft.ErrLeadershipLost) {
			return ErrNotLeader
		}
		return fmt.Errorf("failed to apply command: %w", err)
	}
	if err, ok := future.Response().(error); ok {
		return err
	}
	return nil
}

// Put replicates a table record via Raft consensus.
func (s *Store) Put(table string, rec Record) error {
	if err := s.apply(Command{Op: OpPut, Table: table, Record: &rec}); err != nil {
		return err
	}
	s.logger.Debug("stored table", "table", table, "backend", rec.Backend, "pairs", rec.Pairs, "bytes", len(rec.Blob))
	return nil
}

// Delete removes a table via Raft consensus.
func (s *Store) Delete(table string) error {
	return s.apply(Command{Op: OpDelete, Table: table})
}

// Get retrieves a table record from the local FSM.
// Followers may lag behind the leader.
func (s *Store) Get(table string) (Record, bool) {
	return s.fsm.Get(table)
}

// Tables lists the tables in the local FSM.
func (s *Store) Tables() []string {
	return s.fsm.Tables()
}

// IsLeader returns whether this node is currently the Raft leader.
func (s *Store) IsLeader() bool {
	return s.raft.State() == raft.Leader
}

// Leader returns the address of the current leader.
func (s *Store) Leader() raft.ServerAddress {
	addr, _ := s.raft.LeaderWithID()
	return addr
}

// Addr returns the address this node's raft transport is bound to.
func (s *Store) Addr() raft.ServerAddress {
	return s.transport.LocalAddr()
}

// WaitForLeader blocks until the cluster has a leader or ctx is done.
func (s *Store) WaitForLeader(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.Leader() != "" {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no leader elected: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// AddPeer adds a new voter to the cluster.
func (s *Store) AddPeer(peerID, peerAddr string) error {
	if s.raft.State() != raft.Leader {
		return ErrNotLeader
	}
	return s.raft.AddVoter(raft.ServerID(peerID), raft.ServerAddress(peerAddr), 0, 0).Error()
}

// RemovePeer removes a peer from the cluster.
func (s *Store) RemovePeer(peerID string) error {
	if s.raft.State() != raft.Leader {
		return ErrNotLeader
	}
	return s.raft.RemoveServer(raft.ServerID(peerID), 0, 0).Error()
}

// Shutdown stops raft and releases the transport and bolt files.
// It is safe to call more than once.
func (s *Store) Shutdown() error {
	s.shutdownOnce.Do(func() {
		err := s.raft.Shutdown().Error()
		err = errors.Join(err, s.transport.Close())
		for _, db := range s.boltdbs {
			err = errors.Join(err, db.Close())
		}
		s.shutdownErr = err
	})
	return s.shutdownErr
}
