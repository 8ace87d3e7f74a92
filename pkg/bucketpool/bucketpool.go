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

// Package bucketpool provides a pool of byte slices bucketed by size,
// so that buffers of varying packet sizes are not all rounded up to the
// largest bucket's size the way a single sync.Pool would round them.
package bucketpool

import (
	"math/bits"
	"sync"
)

// Pool is a pool of slices segregated by size, each bucket a power of two.
// Get(n) returns a buffer whose length is exactly n but whose capacity may
// be rounded up to the containing bucket's size.
type Pool struct {
	minSize int
	pools   []sync.Pool
}

// New creates a new Pool with buckets ranging from minSize up to maxSize,
// each one double the last.
func New(minSize, maxSize int) *Pool {
	n := bits.Len(uint(maxSize/minSize)) + 1
	p := &Pool{
		minSize: minSize,
		pools:   make([]sync.Pool, n),
	}
	for i := range p.pools {
		size := minSize << uint(i)
		p.pools[i].New = func() interface{} {
			buf := make([]byte, size)
			return &buf
		}
	}
	return p
}

func (p *Pool) bucket(size int) int {
	if size <= p.minSize {
		return 0
	}
	div := (size - 1) / p.minSize
	b := bits.Len(uint(div))
	if b >= len(p.pools) {
		return -1
	}
	return b
}

// Get returns a buffer of length size, either from the pool or freshly
// allocated if size exceeds the largest bucket.
func (p *Pool) Get(size int) *[]byte {
	i := p.bucket(size)
	if i < 0 {
		buf := make([]byte, size)
		return &buf
	}
	buf := p.pools[i].Get().(*[]byte)
	*buf = (*buf)[:size]
	return buf
}

// Put returns buf to the pool.
func (p *Pool) Put(buf *[]byte) {
	size := cap(*buf)
	i := p.bucket(size)
	if i < 0 {
		return
	}
	*buf = (*buf)[:size]
	p.pools[i].Put(buf)
}
