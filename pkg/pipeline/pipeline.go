// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package pipeline is the bounded FIFO between log producers and the session writer.
// Producers never block: a full pipeline rejects the new line.
package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/queues/circularbuffer"
	"github.com/outrigdev/logscope/pkg/base"
	"github.com/outrigdev/logscope/pkg/logutil"
)

// a drop warning is emitted for the first rejected line and then every DropWarnEvery lines
const DropWarnEvery = 1000

type Pipeline struct {
	lock     sync.Mutex
	notEmpty *sync.Cond
	buf      *circularbuffer.Queue // never allowed to overwrite, Full() is checked first
	capacity int
	closed   bool

	enqueued atomic.Int64
	dropped  atomic.Int64
}

// MakePipeline creates a pipeline holding at most capacity lines.
// capacity <= 0 uses base.DefaultQueueCapacity.
func MakePipeline(capacity int) *Pipeline {
	if capacity <= 0 {
		capacity = base.DefaultQueueCapacity
	}
	p := &Pipeline{
		buf:      circularbuffer.New(capacity),
		capacity: capacity,
	}
	p.notEmpty = sync.NewCond(&p.lock)
	return p
}

type OfferResult int

const (
	OfferAccepted OfferResult = iota
	OfferDropped              // full, counted in Dropped
	OfferClosed               // closed, not counted
)

// Enqueue inserts line without blocking. Returns false if the pipeline is full or closed.
func (p *Pipeline) Enqueue(line string) bool {
	return p.Offer(line) == OfferAccepted
}

// Offer is Enqueue reporting why a line was rejected
func (p *Pipeline) Offer(line string) OfferResult {
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return OfferClosed
	}
	if p.buf.Full() {
		p.lock.Unlock()
		p.recordDrop()
		return OfferDropped
	}
	p.buf.Enqueue(line)
	p.notEmpty.Signal()
	p.lock.Unlock()
	p.enqueued.Add(1)
	return OfferAccepted
}

func (p *Pipeline) recordDrop() {
	n := p.dropped.Add(1)
	if n == 1 || n%DropWarnEvery == 0 {
		logutil.For("pipeline").Warnf("log queue full (capacity %d), dropping log (%d dropped so far)", p.capacity, n)
	}
}

// Dequeue blocks until a line is available. It returns false only once the
// pipeline is closed and fully drained. Only the writer calls this.
func (p *Pipeline) Dequeue() (string, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	for p.buf.Empty() && !p.closed {
		p.notEmpty.Wait()
	}
	return p.dequeue_nolock()
}

// TryDequeue returns the oldest line if there is one, without waiting
func (p *Pipeline) TryDequeue() (string, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.dequeue_nolock()
}

func (p *Pipeline) dequeue_nolock() (string, bool) {
	val, ok := p.buf.Dequeue()
	if !ok {
		return "", false
	}
	return val.(string), true
}

// Close rejects further lines and wakes a blocked consumer. Lines already
// accepted stay readable. Safe to call more than once.
func (p *Pipeline) Close() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.notEmpty.Broadcast()
}

func (p *Pipeline) IsClosed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closed
}

func (p *Pipeline) Size() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.buf.Size()
}

func (p *Pipeline) IsEmpty() bool {
	return p.Size() == 0
}

func (p *Pipeline) Capacity() int {
	return p.capacity
}

// Enqueued is the number of lines ever accepted
func (p *Pipeline) Enqueued() int64 {
	return p.enqueued.Load()
}

// Dropped is the number of lines rejected because the pipeline was full
func (p *Pipeline) Dropped() int64 {
	return p.dropped.Load()
}
