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

package mysql

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/go-dbpack/dbpack/pkg/bucketpool"
	"github.com/go-dbpack/dbpack/pkg/constant"
	"github.com/go-dbpack/dbpack/pkg/errs"
	"github.com/go-dbpack/dbpack/pkg/log"
)

// connBufferSize is how much we buffer for reading. It is also how much we
// allocate for ephemeral buffers.
const connBufferSize = 16 * 1024

// Constants for how ephemeral buffers were used for reading / writing.
const (
	// ephemeralUnused means the ephemeral buffer is not in use at this
	// moment. This is the default value, and is checked so we don't
	// read or write a packet while one is already used.
	ephemeralUnused = iota

	// ephemeralWrite means we currently in process of writing from currentEphemeralBuffer
	ephemeralWrite

	// ephemeralRead means we currently in process of reading into currentEphemeralBuffer
	ephemeralRead
)

// bufPool is used to allocate and free ephemeral packet buffers.
var bufPool = bucketpool.New(connBufferSize, constant.MaxPacketSize)

// Conn is a single connection to a MySQL server speaking the binary
// protocol on top of an already-established net.Conn. Every operation on
// a Conn is expected to be driven by exactly one goroutine at a time; the
// only method safe to call concurrently with an in-flight read is Close.
type Conn struct {
	conn net.Conn

	// ConnectionID is the value the server assigned this connection during
	// the initial handshake.
	ConnectionID uint32

	closed atomic.Bool

	// Packet encoding variables.
	sequence       uint8
	bufferedReader *bufio.Reader

	// Keep track of how the buffer we allocated for an ephemeral packet on
	// the read and write sides is being used. These fields are used by:
	// - StartEphemeralPacket / WriteEphemeralPacket methods for writes.
	// - ReadEphemeralPacket / RecycleReadPacket methods for reads.
	currentEphemeralPolicy int
	// currentEphemeralBuffer tracks the allocated temporary buffer for
	// writes and reads respectively. It can be allocated from bufPool or
	// the heap and should be recycled in the same manner.
	currentEphemeralBuffer *[]byte

	logger *zap.Logger
}

// NewConn wraps an already-dialed net.Conn in the packet-framing protocol.
// Use SetLogger to attach a non-nop *zap.Logger for packet/kill tracing.
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn:           conn,
		bufferedReader: bufio.NewReaderSize(conn, connBufferSize),
		logger:         log.Nop(),
	}
}

// SetLogger attaches a logger for debug packet tracing and warn-level Close
// notices. A nil logger is ignored.
func (c *Conn) SetLogger(logger *zap.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Logger returns the logger attached via SetLogger, or a nop logger if none
// was set.
func (c *Conn) Logger() *zap.Logger {
	return c.logger
}

// ResetSequence resets the packet sequence counter to 0, as required at
// the start of every new command.
func (c *Conn) ResetSequence() {
	c.sequence = 0
}

func (c *Conn) getReader() io.Reader {
	if c.bufferedReader != nil {
		return c.bufferedReader
	}
	return c.conn
}

// fail centralizes the fatal-error check every read/write path needs:
// TransportError and ProtocolError always mean the connection's framing is
// no longer trustworthy, so it gets killed right here instead of leaving
// each caller to remember to do it.
func (c *Conn) fail(err error) error {
	if err != nil && errs.IsFatal(err) {
		c.Kill(err)
	}
	return err
}

func (c *Conn) readHeaderFrom(r io.Reader) (int, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return 0, err
		}
		if strings.HasSuffix(err.Error(), "read: connection reset by peer") {
			return 0, io.EOF
		}
		return 0, c.fail(errs.NewTransportError(errors.Wrapf(err, "io.ReadFull(header size) failed")))
	}

	sequence := header[3]
	if sequence != c.sequence {
		return 0, c.fail(errs.NewProtocolError("invalid sequence, expected %v got %v", c.sequence, sequence))
	}
	c.sequence++

	length := int(uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16)
	c.logger.Debug("read packet", zap.Uint8("sequence", sequence), zap.Int("length", length))
	return length, nil
}

// ReadEphemeralPacket attempts to read a packet into a pooled buffer. Do
// not use this method if the contents of the packet need to be kept after
// the next ReadEphemeralPacket - use ReadPacket instead.
func (c *Conn) ReadEphemeralPacket() ([]byte, error) {
	if c.currentEphemeralPolicy != ephemeralUnused {
		panic(fmt.Sprintf("ReadEphemeralPacket: unexpected currentEphemeralPolicy: %v", c.currentEphemeralPolicy))
	}

	r := c.getReader()

	length, err := c.readHeaderFrom(r)
	if err != nil {
		return nil, err
	}

	c.currentEphemeralPolicy = ephemeralRead
	if length == 0 {
		// This can be caused by the packet after a packet of exactly size
		// MaxPacketSize.
		return nil, nil
	}

	if length < constant.MaxPacketSize {
		c.currentEphemeralBuffer = bufPool.Get(length)
		if _, err := io.ReadFull(r, *c.currentEphemeralBuffer); err != nil {
			return nil, c.fail(errs.NewTransportError(errors.Wrapf(err, "io.ReadFull(packet body of length %v) failed", length)))
		}
		return *c.currentEphemeralBuffer, nil
	}

	// Much slower path: the packet spans multiple 16MB-1 frames and we have
	// to concatenate them anyway, so there's little to gain from pooling.
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, c.fail(errs.NewTransportError(errors.Wrapf(err, "io.ReadFull(packet body of length %v) failed", length)))
	}
	for {
		next, err := c.ReadOnePacket()
		if err != nil {
			return nil, err
		}
		if len(next) == 0 {
			break
		}
		data = append(data, next...)
		if len(next) < constant.MaxPacketSize {
			break
		}
	}

	return data, nil
}

// RecycleReadPacket recycles the read packet. It needs to be called after
// ReadEphemeralPacket was called.
func (c *Conn) RecycleReadPacket() {
	if c.currentEphemeralPolicy != ephemeralRead {
		panic(fmt.Sprintf("trying to call RecycleReadPacket while currentEphemeralPolicy is %d", c.currentEphemeralPolicy))
	}
	if c.currentEphemeralBuffer != nil {
		bufPool.Put(c.currentEphemeralBuffer)
		c.currentEphemeralBuffer = nil
	}
	c.currentEphemeralPolicy = ephemeralUnused
}

// ReadOnePacket reads a single packet frame into a newly allocated buffer.
func (c *Conn) ReadOnePacket() ([]byte, error) {
	r := c.getReader()
	length, err := c.readHeaderFrom(r)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, c.fail(errs.NewTransportError(errors.Wrapf(err, "io.ReadFull(packet body of length %v) failed", length)))
	}
	return data, nil
}

// ReadPacket reads a packet from the underlying connection, reassembling
// frames that span more than one 16MB-1 chunk. It returns a fresh buffer
// owned by the caller.
func (c *Conn) ReadPacket() ([]byte, error) {
	data, err := c.ReadOnePacket()
	if err != nil {
		return nil, err
	}

	if len(data) < constant.MaxPacketSize {
		return data, nil
	}

	for {
		next, err := c.ReadOnePacket()
		if err != nil {
			return nil, err
		}
		if len(next) == 0 {
			break
		}
		data = append(data, next...)
		if len(next) < constant.MaxPacketSize {
			break
		}
	}

	return data, nil
}

// ReadPacketFacade is ReadPacket, but wraps any error as *errs.SQLError so
// callers that propagate straight to an application can rely on it being a
// SQLError.
func (c *Conn) ReadPacketFacade() ([]byte, error) {
	result, err := c.ReadPacket()
	if err != nil {
		return nil, errs.NewSQLError(constant.CRServerLost, constant.SSUnknownSQLState, "%v", err)
	}
	return result, nil
}

// WritePacket writes a packet, cutting it into multiple 16MB-1 frames if
// necessary. Prefer StartEphemeralPacket/WriteEphemeralPacket when the
// payload is already being built into a pooled buffer.
func (c *Conn) WritePacket(data []byte) error {
	index := 0
	length := len(data)

	for {
		packetLength := length
		if packetLength > constant.MaxPacketSize {
			packetLength = constant.MaxPacketSize
		}

		var header [4]byte
		header[0] = byte(packetLength)
		header[1] = byte(packetLength >> 8)
		header[2] = byte(packetLength >> 16)
		header[3] = c.sequence
		if n, err := c.conn.Write(header[:]); err != nil {
			return c.fail(errs.NewTransportError(errors.Wrapf(err, "write(header) failed")))
		} else if n != 4 {
			return c.fail(errs.NewTransportError(errors.Errorf("write(header) returned a short write: %v < 4", n)))
		}

		if n, err := c.conn.Write(data[index : index+packetLength]); err != nil {
			return c.fail(errs.NewTransportError(errors.Wrapf(err, "write(packet) failed")))
		} else if n != packetLength {
			return c.fail(errs.NewTransportError(errors.Errorf("write(packet) returned a short write: %v < %v", n, packetLength)))
		}

		c.sequence++
		length -= packetLength
		if length == 0 {
			if packetLength == constant.MaxPacketSize {
				// The packet we just sent was exactly MaxPacketSize, so a
				// trailing zero-length packet is required to terminate it.
				header[0], header[1], header[2] = 0, 0, 0
				header[3] = c.sequence
				if _, err := c.conn.Write(header[:]); err != nil {
					return c.fail(errs.NewTransportError(errors.Wrapf(err, "write(empty header) failed")))
				}
				c.sequence++
			}
			return nil
		}
		index += packetLength
	}
}

// StartEphemeralPacket allocates a pooled buffer of the given length for
// the caller to fill in before calling WriteEphemeralPacket.
func (c *Conn) StartEphemeralPacket(length int) []byte {
	if c.currentEphemeralPolicy != ephemeralUnused {
		panic("StartEphemeralPacket cannot be used while a packet is already started")
	}

	c.currentEphemeralPolicy = ephemeralWrite
	c.currentEphemeralBuffer = bufPool.Get(length)
	return *c.currentEphemeralBuffer
}

// WriteEphemeralPacket writes the packet allocated by StartEphemeralPacket.
func (c *Conn) WriteEphemeralPacket() error {
	defer c.RecycleWritePacket()

	switch c.currentEphemeralPolicy {
	case ephemeralWrite:
		if err := c.WritePacket(*c.currentEphemeralBuffer); err != nil {
			return errors.Wrapf(err, "conn %v", c.ID())
		}
	case ephemeralUnused, ephemeralRead:
		panic(fmt.Sprintf("conn %v: trying to call WriteEphemeralPacket while currentEphemeralPolicy is %v", c.ID(), c.currentEphemeralPolicy))
	}

	return nil
}

// RecycleWritePacket recycles the write packet. It needs to be called
// after WriteEphemeralPacket was called.
func (c *Conn) RecycleWritePacket() {
	if c.currentEphemeralPolicy != ephemeralWrite {
		panic(fmt.Sprintf("trying to call RecycleWritePacket while currentEphemeralPolicy is %d", c.currentEphemeralPolicy))
	}
	bufPool.Put(c.currentEphemeralBuffer)
	c.currentEphemeralBuffer = nil
	c.currentEphemeralPolicy = ephemeralUnused
}

// GetTLSClientCerts returns the peer certificates presented during the TLS
// handshake, if the connection was upgraded to TLS.
func (c *Conn) GetTLSClientCerts() []*x509.Certificate {
	if tlsConn, ok := c.conn.(*tls.Conn); ok {
		return tlsConn.ConnectionState().PeerCertificates
	}
	return nil
}

// RemoteAddr returns the underlying socket's RemoteAddr().
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ID returns the MySQL connection ID the server assigned this connection.
func (c *Conn) ID() int64 {
	return int64(c.ConnectionID)
}

// String returns a useful identification string for error logging.
func (c *Conn) String() string {
	return fmt.Sprintf("conn %v (%s)", c.ConnectionID, c.RemoteAddr().String())
}

// Close closes the connection. It may be called from a different goroutine
// to interrupt an in-flight read or write.
func (c *Conn) Close() {
	if c.closed.CAS(false, true) {
		c.conn.Close()
	}
}

// Kill closes the connection because of a fault that leaves its framing
// state untrustworthy, logging the triggering error at warn level first.
// Every read/write path in this file calls it itself the moment a
// TransportError or ProtocolError surfaces (see fail), so callers elsewhere
// in the driver only need it for faults detected above the packet layer -
// an auth failure mid-handshake, say.
func (c *Conn) Kill(err error) {
	c.logger.Warn("killing connection", zap.Error(err))
	c.Close()
}

// IsClosed reports whether Close has been called on this connection. If
// the peer closes the socket without a local Close call, this still
// returns false.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}
