package p2p

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/ubxchain/ubxnode/chain"
	"github.com/ubxchain/ubxnode/consensus"
	"github.com/ubxchain/ubxnode/logging"
	"github.com/ubxchain/ubxnode/mempool"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second

	// MiningThreshold is the mempool size that triggers an automatic mine
	// on a Tx message, for nodes configured as miners (spec §4.13).
	MiningThreshold = 10
)

// Server is the node's P2P endpoint: an inbound listener plus a registry of
// known peer addresses. Every outbound send dials a fresh connection (spec
// §4.13 transport).
type Server struct {
	selfAddr     string
	minerAddress string // empty disables local mining
	maxConns     int

	chain     *chain.Chain
	mempool   *mempool.Mempool
	inTransit *mempool.InTransitSet

	peersMu sync.RWMutex
	peers   map[string]struct{}

	connSem chan struct{}
	ln      net.Listener
}

// Config bundles Server's construction parameters.
type Config struct {
	SelfAddr       string
	MinerAddress   string
	MaxConnections int
	Chain          *chain.Chain
	Mempool        *mempool.Mempool
}

// NewServer constructs a Server bound to no socket yet; call ListenAndServe
// to start accepting connections.
func NewServer(cfg Config) *Server {
	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 8
	}
	return &Server{
		selfAddr:     cfg.SelfAddr,
		minerAddress: cfg.MinerAddress,
		maxConns:     maxConns,
		chain:        cfg.Chain,
		mempool:      cfg.Mempool,
		inTransit:    mempool.NewInTransitSet(),
		peers:        make(map[string]struct{}),
		connSem:      make(chan struct{}, maxConns),
	}
}

// ListenAndServe accepts inbound connections on addr until the listener is
// closed via Close.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return consensus.NewError(consensus.ErrNetwork, "p2p: listen %s: %v", addr, err)
	}
	s.ln = ln
	logging.P2PLog.Infof("listening on %s", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		select {
		case s.connSem <- struct{}{}:
			go s.handleConn(conn)
		default:
			logging.P2PLog.Warnf("max connections (%d) reached, rejecting %s", s.maxConns, conn.RemoteAddr())
			_ = conn.Close()
		}
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

// ConnectToSeed sends this node's Version to seedAddr, the startup
// handshake for a non-seed node (spec §4.13).
func (s *Server) ConnectToSeed(seedAddr string) error {
	height, err := s.chain.Height()
	if err != nil {
		return err
	}
	return s.send(seedAddr, Message{
		Type:       TypeVersion,
		AddrFrom:   s.selfAddr,
		Version:    ProtocolVersion,
		BestHeight: height,
	})
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		<-s.connSem
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	dec := json.NewDecoder(conn)
	for {
		var msg Message
		if err := dec.Decode(&msg); err != nil {
			return // EOF, timeout, or decode error: close and drop, no retry
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		s.trackPeer(msg.AddrFrom)
		if err := s.handleMessage(msg); err != nil {
			logging.P2PLog.Warnf("handling %s from %s: %v", msg.Type, msg.AddrFrom, err)
		}
	}
}

func (s *Server) trackPeer(addr string) {
	if addr == "" {
		return
	}
	s.peersMu.Lock()
	s.peers[addr] = struct{}{}
	s.peersMu.Unlock()
}

// KnownPeers returns a snapshot of every peer address seen so far.
func (s *Server) KnownPeers() []string {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	out := make([]string, 0, len(s.peers))
	for addr := range s.peers {
		out = append(out, addr)
	}
	return out
}

func (s *Server) handleMessage(msg Message) error {
	switch msg.Type {
	case TypeVersion:
		return s.onVersion(msg)
	case TypeGetBlocks:
		return s.onGetBlocks(msg)
	case TypeInv:
		return s.onInv(msg)
	case TypeGetData:
		return s.onGetData(msg)
	case TypeBlock:
		return s.onBlock(msg)
	case TypeTx:
		return s.onTx(msg)
	default:
		return consensus.NewError(consensus.ErrNetwork, "unknown message type %q", msg.Type)
	}
}

func (s *Server) onVersion(msg Message) error {
	height, err := s.chain.Height()
	if err != nil {
		return err
	}
	if msg.BestHeight > height {
		return s.send(msg.AddrFrom, Message{Type: TypeGetBlocks, AddrFrom: s.selfAddr})
	}
	if height > msg.BestHeight {
		return s.send(msg.AddrFrom, Message{Type: TypeVersion, AddrFrom: s.selfAddr, Version: ProtocolVersion, BestHeight: height})
	}
	return nil
}

func (s *Server) onGetBlocks(msg Message) error {
	hashes, err := s.chain.Store().AllBlockHashes()
	if err != nil {
		return err
	}
	items := make([][]byte, len(hashes))
	for i, h := range hashes {
		items[i] = []byte(h)
	}
	return s.send(msg.AddrFrom, Message{Type: TypeInv, AddrFrom: s.selfAddr, OpType: OpBlock, Items: items})
}

func (s *Server) onInv(msg Message) error {
	switch msg.OpType {
	case OpBlock:
		if len(msg.Items) == 0 {
			return nil
		}
		hashes := make([]string, len(msg.Items))
		for i, item := range msg.Items {
			hashes[i] = string(item)
		}
		s.inTransit.PushBatch(hashes)
		first, _ := s.inTransit.PeekFirst()
		return s.send(msg.AddrFrom, Message{Type: TypeGetData, AddrFrom: s.selfAddr, OpType: OpBlock, ID: []byte(first)})
	case OpTx:
		for _, item := range msg.Items {
			idHex := string(item)
			if !s.mempool.Contains(idHex) {
				if err := s.send(msg.AddrFrom, Message{Type: TypeGetData, AddrFrom: s.selfAddr, OpType: OpTx, ID: item}); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return consensus.NewError(consensus.ErrNetwork, "inv: unknown op_type %q", msg.OpType)
	}
}

func (s *Server) onGetData(msg Message) error {
	switch msg.OpType {
	case OpBlock:
		blk, ok, err := s.chain.GetBlock(string(msg.ID))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return s.send(msg.AddrFrom, Message{Type: TypeBlock, AddrFrom: s.selfAddr, Block: consensus.EncodeBlock(blk)})
	case OpTx:
		tx, ok := s.mempool.Get(string(msg.ID))
		if !ok {
			return nil
		}
		return s.send(msg.AddrFrom, Message{Type: TypeTx, AddrFrom: s.selfAddr, Transaction: consensus.EncodeTx(&tx)})
	default:
		return consensus.NewError(consensus.ErrNetwork, "getdata: unknown op_type %q", msg.OpType)
	}
}

func (s *Server) onBlock(msg Message) error {
	blk, err := consensus.DecodeBlock(msg.Block)
	if err != nil {
		logging.P2PLog.Warnf("dropping malformed block from %s: %v", msg.AddrFrom, err)
		return nil
	}
	if _, err := s.chain.SyncWithPeer([]*consensus.Block{blk}); err != nil {
		logging.P2PLog.Warnf("applying block %s: %v", blk.Hash, err)
		return nil
	}
	s.inTransit.Remove(blk.Hash)
	if next, ok := s.inTransit.PeekFirst(); ok {
		return s.send(msg.AddrFrom, Message{Type: TypeGetData, AddrFrom: s.selfAddr, OpType: OpBlock, ID: []byte(next)})
	}
	return s.chain.UTXOIndex().Reindex()
}

func (s *Server) onTx(msg Message) error {
	tx, err := consensus.DecodeTx(msg.Transaction)
	if err != nil {
		logging.P2PLog.Warnf("dropping malformed tx from %s: %v", msg.AddrFrom, err)
		return nil
	}
	if err := consensus.VerifyTx(tx, s.chain.UTXOIndex()); err != nil {
		logging.P2PLog.Warnf("dropping invalid tx from %s: %v", msg.AddrFrom, err)
		return nil
	}
	s.mempool.Add(*tx)

	if s.minerAddress != "" && s.mempool.Len() >= MiningThreshold {
		txs := s.mempool.DrainAll()
		blk, err := s.chain.MineBlock(txs, s.minerAddress)
		if err != nil {
			logging.MinerLog.Warnf("auto-mine on mempool threshold failed: %v", err)
			return nil
		}
		if err := s.chain.UTXOIndex().Reindex(); err != nil {
			return err
		}
		logging.MinerLog.Infof("mined block %s at height %d (%d txs)", blk.Hash, blk.Height, len(blk.Transactions))
	}
	return nil
}

// send dials a fresh connection to addr and writes exactly one JSON
// message, then closes (spec §4.13: a fresh connection per outbound
// message). Failures are logged and dropped, never surfaced as partial
// state to the caller (spec §9 Cancellation & timeouts).
func (s *Server) send(addr string, msg Message) error {
	if addr == "" || addr == s.selfAddr {
		return nil
	}
	conn, err := net.DialTimeout("tcp", addr, writeTimeout)
	if err != nil {
		logging.P2PLog.Debugf("dial %s: %v", addr, err)
		return nil
	}
	defer conn.Close()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		logging.P2PLog.Debugf("send %s to %s: %v", msg.Type, addr, err)
	}
	return nil
}

// BroadcastTx admits tx locally and advertises its id to every known peer,
// used by a client submitting a transaction through this node.
func (s *Server) BroadcastTx(tx *consensus.Tx) error {
	if err := consensus.VerifyTx(tx, s.chain.UTXOIndex()); err != nil {
		return err
	}
	s.mempool.Add(*tx)
	idBytes := []byte(mempool.IDHex(tx.ID))
	for _, peer := range s.KnownPeers() {
		_ = s.send(peer, Message{Type: TypeInv, AddrFrom: s.selfAddr, OpType: OpTx, Items: [][]byte{idBytes}})
	}
	return nil
}
