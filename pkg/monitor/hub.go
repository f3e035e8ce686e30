// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"sync"
	"sync/atomic"
)

const PeerBufferSize = 256

type hubPeer struct {
	id     string
	sendCh chan string
}

// Hub fans written session lines out to live stream peers. Publish never blocks:
// a peer whose buffer is full misses the line.
type Hub struct {
	lock    sync.Mutex
	peers   map[string]*hubPeer
	closed  bool
	sent    atomic.Int64
	dropped atomic.Int64
}

func MakeHub() *Hub {
	return &Hub{
		peers: make(map[string]*hubPeer),
	}
}

// Publish is used as the session line observer, so it runs on the writer goroutine
func (h *Hub) Publish(line string) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for _, peer := range h.peers {
		select {
		case peer.sendCh <- line:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) addPeer(id string) *hubPeer {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.closed {
		return nil
	}
	peer := &hubPeer{id: id, sendCh: make(chan string, PeerBufferSize)}
	h.peers[id] = peer
	return peer
}

func (h *Hub) removePeer(id string) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.removePeer_nolock(id)
}

func (h *Hub) removePeer_nolock(id string) {
	peer, found := h.peers[id]
	if !found {
		return
	}
	close(peer.sendCh)
	delete(h.peers, id)
}

// Close disconnects every peer and refuses new ones
func (h *Hub) Close() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.closed = true
	for id := range h.peers {
		h.removePeer_nolock(id)
	}
}

func (h *Hub) PeerCount() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.peers)
}

func (h *Hub) Sent() int64 {
	return h.sent.Load()
}

func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
