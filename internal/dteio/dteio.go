// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package dteio attaches a session.Session's at_rx/at_tx boundary to a real
// byte transport: a serial TTY (the usual way a class-1 DCE is wired to a
// DTE), a TCP listener, or the process's own stdio for local testing.
package dteio

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/gofax/t31modem/internal/atcmd"
	"github.com/tarm/serial"
)

// Transport is the boundary a DTE byte stream is read from and written to.
type Transport interface {
	io.ReadWriteCloser
}

// stdioTransport wires the process's own stdin/stdout as the DTE stream,
// the simplest way to drive the emulator from a terminal or test harness.
type stdioTransport struct {
	io.Reader
	io.Writer
}

func (stdioTransport) Close() error { return nil }

// OpenStdio returns a Transport backed by os.Stdin/os.Stdout.
func OpenStdio() Transport {
	return stdioTransport{Reader: os.Stdin, Writer: os.Stdout}
}

// OpenSerial attaches to a real or pseudo TTY at the given device path and
// baud rate, the way a class-1 DCE is normally wired to a DTE.
func OpenSerial(device string, baud int) (Transport, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}
	return port, nil
}

// tcpTransport accepts a single DTE connection on a TCP listener and then
// behaves as a plain Transport for the lifetime of that connection.
type tcpTransport struct {
	ln   net.Listener
	conn net.Conn
}

// OpenTCP listens on addr and blocks until the first DTE connects.
func OpenTCP(addr string) (Transport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	conn, err := ln.Accept()
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to accept DTE connection: %w", err)
	}
	return &tcpTransport{ln: ln, conn: conn}, nil
}

func (t *tcpTransport) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *tcpTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *tcpTransport) Close() error {
	_ = t.conn.Close()
	return t.ln.Close()
}

// ReceiveSession is the subset of *session.Session the read pump drives.
type ReceiveSession interface {
	AtRx(b []byte)
}

// Pump reads bytes from a Transport and feeds them to a session's AtRx one
// read() worth at a time, running until the transport is closed or Stop is
// called. AT-command framing belongs to the interpreter above, not here.
type Pump struct {
	transport Transport
	session   ReceiveSession
	done      chan struct{}
}

// NewPump builds a read pump over transport feeding session.
func NewPump(transport Transport, session ReceiveSession) *Pump {
	return &Pump{transport: transport, session: session, done: make(chan struct{})}
}

// Run blocks, repeatedly reading from the transport and forwarding each
// chunk to the session, until the transport returns an error (typically
// because it was closed).
func (p *Pump) Run() error {
	r := bufio.NewReaderSize(p.transport, 4096)
	buf := make([]byte, 4096)
	for {
		select {
		case <-p.done:
			return nil
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			p.session.AtRx(buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("dte read failed: %w", err)
		}
	}
}

// Stop signals Run to return on its next iteration.
func (p *Pump) Stop() {
	close(p.done)
}

// Sink implements atcmd.Sink by writing response codes and raw bytes
// straight to the underlying Transport, framing response codes the way a
// class-1 DCE does: "\r\n<code>\r\n".
type Sink struct {
	w io.Writer
}

// NewSink builds a Sink writing to w.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// PutResponseCode writes code framed as a standalone AT result line.
func (s *Sink) PutResponseCode(code atcmd.ResponseCode) {
	fmt.Fprintf(s.w, "\r\n%s\r\n", code.String())
}

// PutBytes writes b verbatim (already DLE-stuffed/bit-reversed as needed
// by the caller).
func (s *Sink) PutBytes(b []byte) {
	s.w.Write(b) //nolint:errcheck // best-effort DTE delivery
}
