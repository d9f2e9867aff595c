package apiv1

// KeyValuePair is one entry of a published table.
type KeyValuePair struct {
	Key   string `cbor:"1,keyasint"`
	Value []byte `cbor:"2,keyasint"`
}

// TableOptions overrides the server's encoding defaults for one table.
// Zero fields keep the default.
type TableOptions struct {
	Backend  string `cbor:"1,keyasint,omitempty"`
	Type     string `cbor:"2,keyasint,omitempty"`
	L        int    `cbor:"3,keyasint,omitempty"`
	Capacity int    `cbor:"4,keyasint,omitempty"`
	FreeMode bool   `cbor:"5,keyasint,omitempty"`
}

type PublishRequest struct {
	Table   string         `cbor:"1,keyasint"`
	Pairs   []KeyValuePair `cbor:"2,keyasint"`
	Options *TableOptions  `cbor:"3,keyasint,omitempty"`
}

type PublishResponse struct {
	Backend string `cbor:"1,keyasint"`
	// Type is empty for the kvs backend.
	Type      string `cbor:"2,keyasint,omitempty"`
	Pairs     int    `cbor:"3,keyasint"`
	BlobBytes int    `cbor:"4,keyasint"`
	Index     uint64 `cbor:"5,keyasint"`
}

type FetchRequest struct {
	Table string `cbor:"1,keyasint"`
}

// FetchResponse carries a table's encoded blob for local decoding.
type FetchResponse struct {
	Backend string `cbor:"1,keyasint"`
	Blob    []byte `cbor:"2,keyasint"`
	Pairs   int    `cbor:"3,keyasint"`
	Index   uint64 `cbor:"4,keyasint"`
}

type LookupRequest struct {
	Table string   `cbor:"1,keyasint"`
	Keys  []string `cbor:"2,keyasint"`
}

// LookupResponse holds one value per requested key, in request order.
type LookupResponse struct {
	Values [][]byte `cbor:"1,keyasint"`
}

type DeleteRequest struct {
	Table string `cbor:"1,keyasint"`
}

type DeleteResponse struct{}

type ListTablesRequest struct{}

type ListTablesResponse struct {
	Tables []string `cbor:"1,keyasint"`
}

// JoinRequest asks the leader to add a node as a raft voter.
type JoinRequest struct {
	NodeID   string `cbor:"1,keyasint"`
	RaftAddr string `cbor:"2,keyasint"`
}

type JoinResponse struct{}
