package server

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apiv1 "github.com/mundrapranay/silhouette-db/api/v1"
	"github.com/mundrapranay/silhouette-db/internal/config"
	"github.com/mundrapranay/silhouette-db/internal/okvs"
	"github.com/mundrapranay/silhouette-db/internal/store"
)

func newTestStore(t testing.TB, nodeID string, bootstrap bool) *store.Store {
	t.Helper()
	s, err := store.NewStore(store.Config{
		NodeID:           nodeID,
		ListenAddr:       "127.0.0.1:0",
		DataDir:          t.TempDir(),
		Bootstrap:        bootstrap,
		HeartbeatTimeout: 500 * time.Millisecond,
		ElectionTimeout:  500 * time.Millisecond,
		CommitTimeout:    50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Shutdown() })
	return s
}

func waitForLeadership(t testing.TB, s *store.Store) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for !s.IsLeader() {
		select {
		case <-timeout:
			t.Fatal("Timeout waiting for leadership")
		case <-tick.C:
		}
	}
}

func setupTestServer(t testing.TB, backend string) (*Server, *store.Store) {
	t.Helper()
	s := newTestStore(t, "test-node", true)
	waitForLeadership(t, s)

	defaults := config.Default().Dokvs
	defaults.Backend = backend
	server, err := NewServer(s, defaults)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return server, s
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", code)
	}
	if got := status.Code(err); got != code {
		t.Fatalf("Expected code %s, got %s (%v)", code, got, err)
	}
}

func TestNewServer_RejectsBadDefaults(t *testing.T) {
	s := newTestStore(t, "test-node", true)
	defaults := config.Default().Dokvs
	defaults.Type = "cuckoo"
	if _, err := NewServer(s, defaults); err == nil {
		t.Fatal("Expected error for unknown type")
	}
}

func TestServer_PublishLookup(t *testing.T) {
	for _, backend := range []string{okvs.BackendDokvs, okvs.BackendKVS} {
		t.Run(backend, func(t *testing.T) {
			server, _ := setupTestServer(t, backend)
			ctx := context.Background()

			pairs := testPairs(200)
			resp, err := server.Publish(ctx, &apiv1.PublishRequest{Table: "round-1", Pairs: pairs})
			if err != nil {
				t.Fatalf("Publish failed: %v", err)
			}
			if resp.Backend != backend || resp.Pairs != 200 || resp.Index == 0 || resp.BlobBytes == 0 {
				t.Fatalf("Unexpected publish response: %+v", resp)
			}
			if backend == okvs.BackendDokvs && resp.Type != "H3_BLAZE_GCT" {
				t.Fatalf("Expected default type, got %q", resp.Type)
			}

			keys := []string{pairs[0].Key, pairs[99].Key, pairs[199].Key}
			lookup, err := server.Lookup(ctx, &apiv1.LookupRequest{Table: "round-1", Keys: keys})
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			for i, idx := range []int{0, 99, 199} {
				if got, want := bytesToFloat64(lookup.Values[i]), float64(idx)*1.5; got != want {
					t.Fatalf("Key %s: expected %v, got %v", keys[i], want, got)
				}
			}
		})
	}
}

func TestServer_LookupCacheFollowsRepublish(t *testing.T) {
	server, _ := setupTestServer(t, okvs.BackendDokvs)
	ctx := context.Background()

	publish := func(v float64) {
		pairs := []apiv1.KeyValuePair{{Key: "k", Value: float64ToBytes(v)}}
		if _, err := server.Publish(ctx, &apiv1.PublishRequest{Table: "t", Pairs: pairs}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	lookup := func() float64 {
		resp, err := server.Lookup(ctx, &apiv1.LookupRequest{Table: "t", Keys: []string{"k"}})
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		return bytesToFloat64(resp.Values[0])
	}

	publish(1)
	if got := lookup(); got != 1 {
		t.Fatalf("Expected 1, got %v", got)
	}
	publish(2)
	if got := lookup(); got != 2 {
		t.Fatalf("Expected 2 after republish, got %v", got)
	}
}

func TestServer_PublishOptions(t *testing.T) {
	server, s := setupTestServer(t, okvs.BackendDokvs)
	ctx := context.Background()

	for _, typ := range []string{"H2_TWO_CORE_GCT", "H3_CLUSTER_BLAZE_GCT", "DISTINCT_GBF", "MEGA_BIN"} {
		table := "table-" + typ
		resp, err := server.Publish(ctx, &apiv1.PublishRequest{
			Table:   table,
			Pairs:   testPairs(300),
			Options: &apiv1.TableOptions{Type: typ, Capacity: 400},
		})
		if err != nil {
			t.Fatalf("Publish %s failed: %v", typ, err)
		}
		if resp.Type != typ {
			t.Fatalf("Expected type %s, got %s", typ, resp.Type)
		}

		rec, _ := s.Get(table)
		tbl, err := okvs.OpenTable(rec.Backend, rec.Blob)
		if err != nil {
			t.Fatalf("Failed to open %s: %v", typ, err)
		}
		v, err := tbl.Get("vertex-7")
		if err != nil || bytesToFloat64(v) != 10.5 {
			t.Fatalf("%s: expected 10.5, got %v (%v)", typ, bytesToFloat64(v), err)
		}
	}
}

func TestServer_PublishErrors(t *testing.T) {
	server, _ := setupTestServer(t, okvs.BackendDokvs)
	ctx := context.Background()

	_, err := server.Publish(ctx, &apiv1.PublishRequest{Pairs: testPairs(1)})
	requireCode(t, err, codes.InvalidArgument)

	dup := []apiv1.KeyValuePair{{Key: "a", Value: []byte{1}}, {Key: "a", Value: []byte{2}}}
	_, err = server.Publish(ctx, &apiv1.PublishRequest{Table: "t", Pairs: dup})
	requireCode(t, err, codes.InvalidArgument)

	mixed := []apiv1.KeyValuePair{{Key: "a", Value: []byte{1}}, {Key: "b", Value: []byte{1, 2}}}
	_, err = server.Publish(ctx, &apiv1.PublishRequest{Table: "t", Pairs: mixed})
	requireCode(t, err, codes.InvalidArgument)

	_, err = server.Publish(ctx, &apiv1.PublishRequest{Table: "t", Pairs: testPairs(1), Options: &apiv1.TableOptions{Type: "cuckoo"}})
	requireCode(t, err, codes.InvalidArgument)

	_, err = server.Publish(ctx, &apiv1.PublishRequest{Table: "t", Pairs: testPairs(1), Options: &apiv1.TableOptions{L: 16}})
	requireCode(t, err, codes.InvalidArgument)
}

func TestServer_PublishRejectsOversizedTables(t *testing.T) {
	server, _ := setupTestServer(t, okvs.BackendDokvs)
	ctx := context.Background()

	_, err := server.Publish(ctx, &apiv1.PublishRequest{Table: "t", Pairs: testPairs(1),
		Options: &apiv1.TableOptions{Capacity: 1 << 44}})
	requireCode(t, err, codes.InvalidArgument)

	_, err = server.Publish(ctx, &apiv1.PublishRequest{Table: "t", Pairs: testPairs(1),
		Options: &apiv1.TableOptions{L: 1 << 20}})
	requireCode(t, err, codes.InvalidArgument)

	wide := []apiv1.KeyValuePair{{Key: "a", Value: make([]byte, 1024)}}
	_, err = server.Publish(ctx, &apiv1.PublishRequest{Table: "t", Pairs: wide,
		Options: &apiv1.TableOptions{Type: "MEGA_BIN"}})
	requireCode(t, err, codes.InvalidArgument)

	s := newTestStore(t, "limits-node", true)
	waitForLeadership(t, s)
	defaults := config.Default().Dokvs
	defaults.MaxCapacity = 4
	defaults.MaxL = 32
	limited, err := NewServer(s, defaults)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	_, err = limited.Publish(ctx, &apiv1.PublishRequest{Table: "t", Pairs: testPairs(5)})
	requireCode(t, err, codes.InvalidArgument)
	_, err = limited.Publish(ctx, &apiv1.PublishRequest{Table: "t", Pairs: testPairs(2)})
	requireCode(t, err, codes.InvalidArgument)

	narrow := []apiv1.KeyValuePair{{Key: "a", Value: []byte{1, 2, 3, 4}}, {Key: "b", Value: []byte{5, 6, 7, 8}}}
	if _, err := limited.Publish(ctx, &apiv1.PublishRequest{Table: "t", Pairs: narrow}); err != nil {
		t.Fatalf("Publish within limits failed: %v", err)
	}

	if _, ok := s.Get("t"); !ok {
		t.Fatal("Expected table t to be stored")
	}
}

func TestServer_FetchDeleteList(t *testing.T) {
	server, _ := setupTestServer(t, okvs.BackendKVS)
	ctx := context.Background()

	_, err := server.Fetch(ctx, &apiv1.FetchRequest{Table: "missing"})
	requireCode(t, err, codes.NotFound)
	_, err = server.Lookup(ctx, &apiv1.LookupRequest{Table: "missing", Keys: []string{"k"}})
	requireCode(t, err, codes.NotFound)
	_, err = server.Delete(ctx, &apiv1.DeleteRequest{Table: "missing"})
	requireCode(t, err, codes.NotFound)

	for _, name := range []string{"b", "a"} {
		if _, err := server.Publish(ctx, &apiv1.PublishRequest{Table: name, Pairs: testPairs(3)}); err != nil {
			t.Fatalf("Publish %s failed: %v", name, err)
		}
	}

	list, err := server.ListTables(ctx, &apiv1.ListTablesRequest{})
	if err != nil || len(list.Tables) != 2 || list.Tables[0] != "a" {
		t.Fatalf("Unexpected table list %v (%v)", list, err)
	}

	fetched, err := server.Fetch(ctx, &apiv1.FetchRequest{Table: "a"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if fetched.Backend != okvs.BackendKVS || fetched.Pairs != 3 || len(fetched.Blob) == 0 {
		t.Fatalf("Unexpected fetch response: %+v", fetched)
	}

	_, err = server.Lookup(ctx, &apiv1.LookupRequest{Table: "a", Keys: []string{"absent"}})
	requireCode(t, err, codes.NotFound)
	_, err = server.Lookup(ctx, &apiv1.LookupRequest{Table: "a", Keys: []string{""}})
	requireCode(t, err, codes.InvalidArgument)

	if _, err := server.Delete(ctx, &apiv1.DeleteRequest{Table: "a"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	_, err = server.Fetch(ctx, &apiv1.FetchRequest{Table: "a"})
	requireCode(t, err, codes.NotFound)
}

func TestServer_NotLeader(t *testing.T) {
	s := newTestStore(t, "test-node", false)
	server, err := NewServer(s, config.Default().Dokvs)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	ctx := context.Background()

	_, err = server.Publish(ctx, &apiv1.PublishRequest{Table: "t", Pairs: testPairs(1)})
	requireCode(t, err, codes.FailedPrecondition)
	_, err = server.Delete(ctx, &apiv1.DeleteRequest{Table: "t"})
	requireCode(t, err, codes.FailedPrecondition)
	_, err = server.Join(ctx, &apiv1.JoinRequest{NodeID: "n", RaftAddr: "127.0.0.1:1"})
	requireCode(t, err, codes.FailedPrecondition)
}

func TestServer_Join(t *testing.T) {
	server, _ := setupTestServer(t, okvs.BackendDokvs)
	ctx := context.Background()

	_, err := server.Join(ctx, &apiv1.JoinRequest{NodeID: "node2"})
	requireCode(t, err, codes.InvalidArgument)

	follower := newTestStore(t, "node2", false)
	if _, err := server.Join(ctx, &apiv1.JoinRequest{NodeID: "node2", RaftAddr: string(follower.Addr())}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, err := server.Publish(ctx, &apiv1.PublishRequest{Table: "t", Pairs: testPairs(5)}); err != nil {
		t.Fatalf("Publish after join failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := follower.Get("t"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Table did not replicate to joined node")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestRecoverPanics(t *testing.T) {
	intercept := RecoverPanics(nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/silhouette.dokvs.v1.DokvsService/Publish"}

	resp, err := intercept(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("makeslice: len out of range")
	})
	if resp != nil {
		t.Fatalf("Expected nil response, got %v", resp)
	}
	requireCode(t, err, codes.Internal)

	resp, err = intercept(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	if err != nil || resp != "ok" {
		t.Fatalf("Expected pass-through, got %v (%v)", resp, err)
	}
}
