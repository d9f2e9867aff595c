package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	apiv1 "github.com/mundrapranay/silhouette-db/api/v1"
	"github.com/mundrapranay/silhouette-db/internal/okvs"
)

// Client provides a Go client library for publishing encoded tables to
// a dokvs-server cluster and reading them back.
type Client struct {
	conn    *grpc.ClientConn
	service apiv1.DokvsServiceClient
}

// PublishOptions overrides the server's encoding defaults for a table.
type PublishOptions = apiv1.TableOptions

// NewClient creates a new client connection to a dokvs-server.
func NewClient(serverAddr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(serverAddr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	return &Client{
		conn:    conn,
		service: apiv1.NewDokvsServiceClient(conn),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Publish encodes pairs on the server as table name. opts may be nil.
func (c *Client) Publish(ctx context.Context, table string, pairs map[string][]byte, opts *PublishOptions) (*apiv1.PublishResponse, error) {
	kvPairs := make([]apiv1.KeyValuePair, 0, len(pairs))
	for k, v := range pairs {
		kvPairs = append(kvPairs, apiv1.KeyValuePair{Key: k, Value: v})
	}

	resp, err := c.service.Publish(ctx, &apiv1.PublishRequest{
		Table:   table,
		Pairs:   kvPairs,
		Options: opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish table %s: %w", table, err)
	}
	return resp, nil
}

// Fetch downloads the encoded table and opens it for local lookups. The
// server learns which table was fetched, not which keys are read.
func (c *Client) Fetch(ctx context.Context, table string) (okvs.Table, error) {
	resp, err := c.service.Fetch(ctx, &apiv1.FetchRequest{Table: table})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch table %s: %w", table, err)
	}
	t, err := okvs.OpenTable(resp.Backend, resp.Blob)
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", table, err)
	}
	return t, nil
}

// Get fetches the table and decodes key locally.
func (c *Client) Get(ctx context.Context, table, key string) ([]byte, error) {
	t, err := c.Fetch(ctx, table)
	if err != nil {
		return nil, err
	}
	return t.Get(key)
}

// Lookup decodes keys on the server. Unlike Get, the server sees the keys.
func (c *Client) Lookup(ctx context.Context, table string, keys ...string) ([][]byte, error) {
	resp, err := c.service.Lookup(ctx, &apiv1.LookupRequest{Table: table, Keys: keys})
	if err != nil {
		return nil, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	return resp.Values, nil
}

// Delete removes a table.
func (c *Client) Delete(ctx context.Context, table string) error {
	if _, err := c.service.Delete(ctx, &apiv1.DeleteRequest{Table: table}); err != nil {
		return fmt.Errorf("failed to delete table %s: %w", table, err)
	}
	return nil
}

// ListTables returns the tables known to the server.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	resp, err := c.service.ListTables(ctx, &apiv1.ListTablesRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return resp.Tables, nil
}

// Join asks the server, which must be the leader, to add a raft voter.
func (c *Client) Join(ctx context.Context, nodeID, raftAddr string) error {
	if _, err := c.service.Join(ctx, &apiv1.JoinRequest{NodeID: nodeID, RaftAddr: raftAddr}); err != nil {
		return fmt.Errorf("failed to join %s: %w", nodeID, err)
	}
	return nil
}
