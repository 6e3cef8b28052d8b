// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package audioio attaches a session.Session's rx/tx boundary to an 8kHz
// linear-PCM line transport: a UDP socket carrying raw sample frames, or a
// raw PCM file for offline/test use. Frame pacing on the transmit side
// uses a platform-specific sleeper (see pacing_linux.go) so the 8kHz clock
// the session depends on stays honest even when the OS scheduler is busy.
package audioio

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
)

// FrameSamples is the default line-audio frame size: 20ms at 8kHz, the
// common packetization interval for PCM-over-UDP line taps.
const FrameSamples = 160

// SampleRate is the fixed clock every transport in this package assumes.
const SampleRate = 8000

// Source is read to obtain incoming line-audio samples.
type Source interface {
	// ReadFrame blocks until a frame is available, writing up to len(buf)
	// samples and returning the count actually produced.
	ReadFrame(buf []int16) (int, error)
	Close() error
}

// Sink is written to emit outgoing line-audio samples.
type Sink interface {
	WriteFrame(samples []int16) error
	Close() error
}

// udpTransport carries PCM frames as UDP datagrams of little-endian int16
// samples, one datagram per frame.
type udpTransport struct {
	conn *net.UDPConn
}

// OpenUDP binds a local UDP socket at localAddr and, once connected via
// Dial-style usage, exchanges PCM frames with peerAddr.
func OpenUDP(localAddr, peerAddr string) (*udpTransport, error) {
	local, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve local audio address %s: %w", localAddr, err)
	}
	var conn *net.UDPConn
	if peerAddr != "" {
		peer, err := net.ResolveUDPAddr("udp", peerAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve peer audio address %s: %w", peerAddr, err)
		}
		conn, err = net.DialUDP("udp", local, peer)
		if err != nil {
			return nil, fmt.Errorf("failed to dial audio peer %s: %w", peerAddr, err)
		}
	} else {
		conn, err = net.ListenUDP("udp", local)
		if err != nil {
			return nil, fmt.Errorf("failed to listen for audio on %s: %w", localAddr, err)
		}
	}
	return &udpTransport{conn: conn}, nil
}

// ReadFrame reads one datagram and decodes it into int16 samples.
func (t *udpTransport) ReadFrame(buf []int16) (int, error) {
	raw := make([]byte, len(buf)*2)
	n, _, err := t.conn.ReadFromUDP(raw)
	if err != nil {
		return 0, fmt.Errorf("audio udp read failed: %w", err)
	}
	samples := n / 2
	for i := 0; i < samples; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples, nil
}

// WriteFrame encodes samples as little-endian int16 and sends them as one
// datagram.
func (t *udpTransport) WriteFrame(samples []int16) error {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	if _, err := t.conn.Write(raw); err != nil {
		return fmt.Errorf("audio udp write failed: %w", err)
	}
	return nil
}

func (t *udpTransport) Close() error { return t.conn.Close() }

// LocalAddr returns the bound local address, useful for logging and for
// wiring a listening instance's address into a peer's dial target in tests.
func (t *udpTransport) LocalAddr() string { return t.conn.LocalAddr().String() }

// fileTransport reads/writes a continuous raw s16le PCM stream, used for
// offline fax-image capture/replay and tests.
type fileTransport struct {
	f *os.File
}

// OpenFileSource opens path for reading as a raw PCM stream.
func OpenFileSource(path string) (*fileTransport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file %s: %w", path, err)
	}
	return &fileTransport{f: f}, nil
}

// OpenFileSink creates (or truncates) path for writing a raw PCM stream.
func OpenFileSink(path string) (*fileTransport, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio file %s: %w", path, err)
	}
	return &fileTransport{f: f}, nil
}

func (t *fileTransport) ReadFrame(buf []int16) (int, error) {
	raw := make([]byte, len(buf)*2)
	n, err := t.f.Read(raw)
	if n > 0 {
		for i := 0; i < n/2; i++ {
			buf[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	}
	if err != nil {
		return n / 2, fmt.Errorf("audio file read failed: %w", err)
	}
	return n / 2, nil
}

func (t *fileTransport) WriteFrame(samples []int16) error {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	if _, err := t.f.Write(raw); err != nil {
		return fmt.Errorf("audio file write failed: %w", err)
	}
	return nil
}

func (t *fileTransport) Close() error { return t.f.Close() }
