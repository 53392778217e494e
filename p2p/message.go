// Package p2p implements the gossip protocol: a stream of self-delimited
// JSON objects over TCP (spec §4.13). A fresh connection is opened for
// every outbound message; inbound connections are read until the peer
// closes or the read timeout fires.
package p2p

// Message types (spec §4.13 wire format table).
const (
	TypeVersion   = "Version"
	TypeGetBlocks = "GetBlocks"
	TypeInv       = "Inv"
	TypeGetData   = "GetData"
	TypeBlock     = "Block"
	TypeTx        = "Tx"
)

// OpType distinguishes what an Inv or GetData message refers to.
const (
	OpBlock = "Block"
	OpTx    = "Tx"
)

// ProtocolVersion is the value this node advertises in a Version message.
const ProtocolVersion = 1

// Message is the single tagged union carried over the wire. encoding/json
// marshals []byte and [][]byte fields as base64 automatically, satisfying
// the "block/transaction payloads are bytes inside the JSON" requirement
// without a custom codec.
type Message struct {
	Type string `json:"type"`

	AddrFrom string `json:"addr_from"`

	// Version
	Version    int    `json:"version,omitempty"`
	BestHeight uint64 `json:"best_height,omitempty"`

	// Inv / GetData
	OpType string   `json:"op_type,omitempty"`
	Items  [][]byte `json:"items,omitempty"`
	ID     []byte   `json:"id,omitempty"`

	// Block / Tx payloads: the canonical binary encoding of the object.
	Block       []byte `json:"block,omitempty"`
	Transaction []byte `json:"transaction,omitempty"`
}
