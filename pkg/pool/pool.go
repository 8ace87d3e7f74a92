/*
 * Copyright 2022 CECTC, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package pool defines the resource-lease interface a Connection pool
// wraps around, and a small buffered-channel reference implementation
// sufficient for tests and example wiring. Thread synchronization between
// Close and IsClosed is the caller's responsibility, same as the upstream
// resource-pool idiom this is modeled on.
package pool

import (
	"context"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/go-dbpack/dbpack/pkg/errs"
)

// Resource is anything a pool can lease out and eventually close. A
// *driver.BackendConnection satisfies this directly.
type Resource interface {
	Close()
	IsClosed() bool
}

// Pinger is implemented by a Resource that can verify its own liveness.
// Simple pings an idle lease once it's old enough to be worth doubting,
// rather than handing out a connection the server may have already
// dropped.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Factory constructs a fresh Resource, used when the pool is empty or the
// resource it would have returned is closed.
type Factory func(ctx context.Context) (Resource, error)

// lease pairs an idle Resource with the cache key tracking how long it's
// been sitting in the free channel.
type lease struct {
	resource Resource
	key      string
}

// Simple is a buffered-channel pool of exclusive leases. It never blocks
// indefinitely on Get: the caller's context governs the wait. Idle leases
// older than idleTTL are evicted and closed rather than handed back out;
// leases old enough to be worth doubting but not yet expired are pinged
// before being returned.
type Simple struct {
	factory Factory
	idleTTL time.Duration
	pingAge time.Duration

	idle *gocache.Cache

	mu      sync.Mutex
	closed  bool
	free    chan lease
	active  int
	cap     int
	nextKey uint64
}

// New creates a Simple pool with the given capacity and a 5 minute idle
// TTL. No resources are created eagerly; they are built lazily by Get via
// factory.
func New(factory Factory, capacity int) *Simple {
	return NewWithIdleTTL(factory, capacity, 5*time.Minute)
}

// NewWithIdleTTL is New with an explicit idle-eviction window. A lease idle
// for longer than idleTTL is closed instead of reused; one idle for more
// than a tenth of idleTTL is pinged (when it implements Pinger) before
// being handed back out.
func NewWithIdleTTL(factory Factory, capacity int, idleTTL time.Duration) *Simple {
	return &Simple{
		factory: factory,
		idleTTL: idleTTL,
		pingAge: idleTTL / 10,
		idle:    gocache.New(idleTTL, idleTTL/2),
		free:    make(chan lease, capacity),
		cap:     capacity,
	}
}

// acceptIdle validates a lease popped off the free channel: closed,
// TTL-expired, or ping-failed resources are discarded instead of handed
// back out.
func (p *Simple) acceptIdle(l lease) (Resource, bool) {
	insertedAt, found := p.idle.Get(l.key)
	p.idle.Delete(l.key)

	if l.resource.IsClosed() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
		return nil, false
	}
	if !found {
		// TTL already elapsed; go-cache lazily drops expired entries on Get.
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
		l.resource.Close()
		return nil, false
	}

	if pinger, ok := l.resource.(Pinger); ok && time.Since(insertedAt.(time.Time)) >= p.pingAge {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := pinger.Ping(ctx)
		cancel()
		if err != nil {
			p.mu.Lock()
			p.active--
			p.mu.Unlock()
			l.resource.Close()
			return nil, false
		}
	}
	return l.resource, true
}

// Get returns a leased Resource, reusing an idle one from the pool when
// available and live, or else constructing a fresh one via the factory.
func (p *Simple) Get(ctx context.Context) (Resource, error) {
	for {
		select {
		case l := <-p.free:
			if r, ok := p.acceptIdle(l); ok {
				return r, nil
			}
			continue
		default:
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, errs.NewProtocolError("pool is closed")
		}
		if p.active >= p.cap {
			p.mu.Unlock()
			select {
			case l := <-p.free:
				if r, ok := p.acceptIdle(l); ok {
					return r, nil
				}
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		p.active++
		p.mu.Unlock()

		r, err := p.factory(ctx)
		if err != nil {
			p.mu.Lock()
			p.active--
			p.mu.Unlock()
			return nil, err
		}
		return r, nil
	}
}

// Put returns a lease to the pool. A closed Resource is discarded rather
// than recycled. Put never blocks: if the pool's buffer is full (can only
// happen if capacity shrank concurrently) the resource is closed instead.
func (p *Simple) Put(r Resource) {
	p.mu.Lock()

	if p.closed || r.IsClosed() {
		p.active--
		p.mu.Unlock()
		r.Close()
		return
	}

	p.nextKey++
	key := strconv.FormatUint(p.nextKey, 10)
	p.mu.Unlock()

	select {
	case p.free <- lease{resource: r, key: key}:
		p.idle.Set(key, time.Now(), gocache.DefaultExpiration)
	default:
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
		r.Close()
	}
}

// Close closes every idle resource currently in the pool and marks it
// closed; leases already checked out are unaffected until their Put call.
func (p *Simple) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case l := <-p.free:
			l.resource.Close()
		default:
			return
		}
	}
}
