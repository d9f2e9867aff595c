package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apiv1 "github.com/mundrapranay/silhouette-db/api/v1"
	"github.com/mundrapranay/silhouette-db/internal/config"
	"github.com/mundrapranay/silhouette-db/internal/dokvs"
	"github.com/mundrapranay/silhouette-db/internal/okvs"
	"github.com/mundrapranay/silhouette-db/internal/store"
)

// Server implements the DokvsService gRPC server.
type Server struct {
	apiv1.UnimplementedDokvsServiceServer

	store    *store.Store
	defaults config.DokvsConfig
	random   io.Reader
	logger   hclog.Logger

	// Opened tables for server-side lookups, invalidated by raft index.
	tablesMu sync.Mutex
	tables   map[string]openTable
}

type openTable struct {
	index uint64
	table okvs.Table
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger hclog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRandom sets the entropy source for hash keys and random elements.
func WithRandom(r io.Reader) Option {
	return func(s *Server) { s.random = r }
}

// NewServer creates a new gRPC server instance. defaults is the table
// encoding used when a publish carries no overrides.
func NewServer(s *store.Store, defaults config.DokvsConfig, opts ...Option) (*Server, error) {
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid table defaults: %w", err)
	}
	srv := &Server{
		store:    s,
		defaults: defaults,
		logger:   hclog.NewNullLogger(),
		tables:   make(map[string]openTable),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv, nil
}

// codeOf maps encoder and store errors to gRPC codes.
func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, dokvs.ErrInvalidInput), errors.Is(err, dokvs.ErrInvalidConfig):
		return codes.InvalidArgument
	case errors.Is(err, dokvs.ErrCannotEncode), errors.Is(err, store.ErrNotLeader):
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

func (s *Server) requireLeader() error {
	if !s.store.IsLeader() {
		return status.Errorf(codes.FailedPrecondition, "not the leader (leader: %q)", s.store.Leader())
	}
	return nil
}

// tableConfig applies per-table overrides to the server defaults.
func (s *Server) tableConfig(o *apiv1.TableOptions) (config.DokvsConfig, error) {
	cfg := s.defaults
	if o != nil {
		if o.Backend != "" {
			cfg.Backend = o.Backend
		}
		if o.Type != "" {
			cfg.Type = o.Type
		}
		if o.L != 0 {
			cfg.L = o.L
		}
		if o.Capacity != 0 {
			cfg.Capacity = o.Capacity
		}
		cfg.FreeMode = cfg.FreeMode || o.FreeMode
	}
	return cfg, cfg.Validate()
}

// Publish encodes the pairs into a table and replicates the blob.
func (s *Server) Publish(ctx context.Context, req *apiv1.PublishRequest) (*apiv1.PublishResponse, error) {
	if err := s.requireLeader(); err != nil {
		return nil, err
	}
	if req.Table == "" {
		return nil, status.Error(codes.InvalidArgument, "table name is required")
	}

	pairs := make(map[string][]byte, len(req.Pairs))
	for _, p := range req.Pairs {
		if p.Key == "" {
			return nil, status.Errorf(codes.InvalidArgument, "table %s: empty key", req.Table)
		}
		if _, dup := pairs[p.Key]; dup {
			return nil, status.Errorf(codes.InvalidArgument, "table %s: duplicate key %s", req.Table, p.Key)
		}
		pairs[p.Key] = p.Value
	}

	cfg, err := s.tableConfig(req.Options)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "table %s: %v", req.Table, err)
	}
	if len(pairs) > cfg.MaxCapacity {
		return nil, status.Errorf(codes.InvalidArgument, "table %s: %d pairs exceed the limit of %d",
			req.Table, len(pairs), cfg.MaxCapacity)
	}
	for k, v := range pairs {
		if 8*len(v) > cfg.MaxL {
			return nil, status.Errorf(codes.InvalidArgument, "table %s: value for %s exceeds %d bits",
				req.Table, k, cfg.MaxL)
		}
	}
	params, err := cfg.Params(s.logger.Named("encoder"))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "table %s: %v", req.Table, err)
	}
	params.Random = s.random

	encoder, err := okvs.NewEncoder(cfg.Backend, params)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "table %s: %v", req.Table, err)
	}
	blob, err := encoder.Encode(pairs)
	if err != nil {
		return nil, status.Errorf(codeOf(err), "failed to encode table %s: %v", req.Table, err)
	}

	if err := s.store.Put(req.Table, store.Record{Backend: cfg.Backend, Blob: blob, Pairs: len(pairs)}); err != nil {
		return nil, status.Errorf(codeOf(err), "failed to store table %s: %v", req.Table, err)
	}
	rec, _ := s.store.Get(req.Table)
	s.logger.Info("published table", "table", req.Table, "backend", cfg.Backend, "type", cfg.Type, "pairs", len(pairs), "bytes", len(blob))

	resp := &apiv1.PublishResponse{
		Backend:   cfg.Backend,
		Pairs:     len(pairs),
		BlobBytes: len(blob),
		Index:     rec.Index,
	}
	if cfg.Backend == okvs.BackendDokvs {
		resp.Type = cfg.Type
	}
	return resp, nil
}

// Fetch returns the encoded blob of a table from the local replica.
func (s *Server) Fetch(ctx context.Context, req *apiv1.FetchRequest) (*apiv1.FetchResponse, error) {
	rec, ok := s.store.Get(req.Table)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "table %s not found", req.Table)
	}
	return &apiv1.FetchResponse{
		Backend: rec.Backend,
		Blob:    rec.Blob,
		Pairs:   rec.Pairs,
		Index:   rec.Index,
	}, nil
}

// openTable returns the decoded table for rec, reusing the cached one
// while the record is unchanged.
func (s *Server) openTable(name string, rec store.Record) (okvs.Table, error) {
	s.tablesMu.Lock()
	defer s.tablesMu.Unlock()

	if cached, ok := s.tables[name]; ok && cached.index == rec.Index {
		return cached.table, nil
	}
	table, err := okvs.OpenTable(rec.Backend, rec.Blob)
	if err != nil {
		return nil, err
	}
	s.tables[name] = openTable{index: rec.Index, table: table}
	return table, nil
}

// Lookup decodes keys server-side. For the dokvs backend a key that was
// never published decodes to an unrelated value.
func (s *Server) Lookup(ctx context.Context, req *apiv1.LookupRequest) (*apiv1.LookupResponse, error) {
	rec, ok := s.store.Get(req.Table)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "table %s not found", req.Table)
	}
	table, err := s.openTable(req.Table, rec)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to open table %s: %v", req.Table, err)
	}

	values := make([][]byte, len(req.Keys))
	for i, key := range req.Keys {
		if key == "" {
			return nil, status.Errorf(codes.InvalidArgument, "table %s: empty key", req.Table)
		}
		v, err := table.Get(key)
		if err != nil {
			return nil, status.Errorf(codes.NotFound, "table %s: %v", req.Table, err)
		}
		values[i] = v
	}
	return &apiv1.LookupResponse{Values: values}, nil
}

// Delete removes a table.
func (s *Server) Delete(ctx context.Context, req *apiv1.DeleteRequest) (*apiv1.DeleteResponse, error) {
	if err := s.requireLeader(); err != nil {
		return nil, err
	}
	if _, ok := s.store.Get(req.Table); !ok {
		return nil, status.Errorf(codes.NotFound, "table %s not found", req.Table)
	}
	if err := s.store.Delete(req.Table); err != nil {
		return nil, status.Errorf(codeOf(err), "failed to delete table %s: %v", req.Table, err)
	}

	s.tablesMu.Lock()
	delete(s.tables, req.Table)
	s.tablesMu.Unlock()
	return &apiv1.DeleteResponse{}, nil
}

// ListTables returns the table names on the local replica.
func (s *Server) ListTables(ctx context.Context, req *apiv1.ListTablesRequest) (*apiv1.ListTablesResponse, error) {
	return &apiv1.ListTablesResponse{Tables: s.store.Tables()}, nil
}

// Join adds a node to the raft cluster.
func (s *Server) Join(ctx context.Context, req *apiv1.JoinRequest) (*apiv1.JoinResponse, error) {
	if err := s.requireLeader(); err != nil {
		return nil, err
	}
	if req.NodeID == "" || req.RaftAddr == "" {
		return nil, status.Error(codes.InvalidArgument, "node id and raft address are required")
	}
	if err := s.store.AddPeer(req.NodeID, req.RaftAddr); err != nil {
		return nil, status.Errorf(codeOf(err), "failed to add node %s: %v", req.NodeID, err)
	}
	s.logger.Info("node joined", "node_id", req.NodeID, "raft_addr", req.RaftAddr)
	return &apiv1.JoinResponse{}, nil
}
