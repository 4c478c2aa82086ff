// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/route_tracker/internal/gps"
)

// OpenSerial opens a GPS serial port with 8N1 framing. Access errors are
// reported as ErrPermissionDenied.
func OpenSerial(portName string, baudRate int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s: %v", ErrPermissionDenied, portName, err)
		}
		return nil, fmt.Errorf("open serial %s: %w", portName, err)
	}
	return port, nil
}

// NMEASource reads NMEA sentences from a byte stream, usually a serial
// GPS receiver. Void fixes are dropped.
type NMEASource struct {
	open func() (io.ReadCloser, error)

	mu   sync.RWMutex
	last gps.Fix
	have bool
}

// NewSerialNMEASource reads from the named serial port. The port is opened
// on each Watch and closed when the subscription is removed.
func NewSerialNMEASource(portName string, baudRate int) *NMEASource {
	return &NMEASource{
		open: func() (io.ReadCloser, error) { return OpenSerial(portName, baudRate) },
	}
}

// NewNMEASource reads from open, which is called once per Watch or
// CurrentPosition that needs a stream.
func NewNMEASource(open func() (io.ReadCloser, error)) *NMEASource {
	return &NMEASource{open: open}
}

// RequestPermission opens and closes the stream once.
func (s *NMEASource) RequestPermission(context.Context) error {
	rc, err := s.open()
	if err != nil {
		return err
	}
	return rc.Close()
}

// CurrentPosition returns the last fix seen by a watch, or reads the
// stream until the first valid fix.
func (s *NMEASource) CurrentPosition(ctx context.Context) (gps.Fix, error) {
	s.mu.RLock()
	last, have := s.last, s.have
	s.mu.RUnlock()
	if have {
		return last, nil
	}

	rc, err := s.open()
	if err != nil {
		return gps.Fix{}, err
	}
	defer rc.Close()

	// closing the stream unblocks the reader on cancel
	stop := context.AfterFunc(ctx, func() { rc.Close() })
	defer stop()

	var first gps.Fix
	found := false
	err = s.scan(rc, func(f gps.Fix) bool {
		first, found = f, true
		return false
	})
	if found {
		s.remember(first)
		return first, nil
	}
	if ctx.Err() != nil {
		return gps.Fix{}, ctx.Err()
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return gps.Fix{}, fmt.Errorf("nmea: no valid fix: %w", err)
}

// Watch delivers valid fixes until the stream ends or the subscription is
// removed.
func (s *NMEASource) Watch(ctx context.Context, opts WatchOptions, h Handler) (Subscription, error) {
	rc, err := s.open()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	g := newGate(opts, nil)
	var closeOnce sync.Once
	closeStream := func() { closeOnce.Do(func() { rc.Close() }) }
	stop := context.AfterFunc(ctx, closeStream)

	go func() {
		defer close(done)
		defer stop()
		defer closeStream()

		err := s.scan(rc, func(f gps.Fix) bool {
			s.remember(f)
			if g.allow(f) {
				h(f)
			}
			return ctx.Err() == nil
		})
		if err != nil && ctx.Err() == nil {
			log.Printf("nmea: read error: %v", err)
		}
	}()

	return &cancelSubscription{cancel: cancel, done: done}, nil
}

func (s *NMEASource) remember(f gps.Fix) {
	s.mu.Lock()
	s.last, s.have = f, true
	s.mu.Unlock()
}

// scan feeds valid fixes from r to fn until fn returns false or r ends.
// Unparseable lines are skipped.
func (s *NMEASource) scan(r io.Reader, fn func(gps.Fix) bool) error {
	var dec gps.Decoder
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fix, ok, err := dec.Decode(scanner.Text())
		if err != nil || !ok || !fix.Valid() {
			continue
		}
		if !fn(fix) {
			return nil
		}
	}
	return scanner.Err()
}
