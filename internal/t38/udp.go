// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package t38

import (
	"fmt"
	"net"
)

// UDPHandler is a minimal PacketHandler over a UDP socket. It is
// deliberately not a full ITU-T T.38 UDPTL encoder: real IFP
// packetization (sequence numbers, redundancy-as-wire-bytes, error
// correction spans) belongs to the packetization layer above this
// transport. This wire format exists only so the timed-step pump and
// ingress callbacks in package session have a concrete transport to
// exercise end-to-end.
type UDPHandler struct {
	conn *net.UDPConn
}

// msgKind tags the four message shapes this minimal wire format carries.
type msgKind byte

const (
	msgIndicator msgKind = iota
	msgData
	msgMissing
	msgDataFields
)

// DialUDP opens a UDP socket bound to localAddr and connected to peerAddr.
func DialUDP(localAddr, peerAddr string) (*UDPHandler, error) {
	local, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve local t38 address %s: %w", localAddr, err)
	}
	peer, err := net.ResolveUDPAddr("udp", peerAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve peer t38 address %s: %w", peerAddr, err)
	}
	conn, err := net.DialUDP("udp", local, peer)
	if err != nil {
		return nil, fmt.Errorf("failed to dial t38 peer %s: %w", peerAddr, err)
	}
	return &UDPHandler{conn: conn}, nil
}

// SendIndicator implements PacketHandler.
func (h *UDPHandler) SendIndicator(ind Indicator) error {
	_, err := h.conn.Write([]byte{byte(msgIndicator), byte(ind)})
	if err != nil {
		return fmt.Errorf("t38 udp send indicator failed: %w", err)
	}
	return nil
}

// SendData implements PacketHandler.
func (h *UDPHandler) SendData(dt DataType, ft FieldType, buf []byte) error {
	out := make([]byte, 3+len(buf))
	out[0] = byte(msgData)
	out[1] = byte(dt)
	out[2] = byte(ft)
	copy(out[3:], buf)
	if _, err := h.conn.Write(out); err != nil {
		return fmt.Errorf("t38 udp send data failed: %w", err)
	}
	return nil
}

// SendDataFields implements PacketHandler, packing every field into one
// datagram: a 3-byte header (kind, data type, field count) followed by
// each field as (field type, 2-byte big-endian length, payload).
func (h *UDPHandler) SendDataFields(dt DataType, fields []Field) error {
	size := 3
	for _, f := range fields {
		size += 3 + len(f.Data)
	}
	out := make([]byte, 0, size)
	out = append(out, byte(msgDataFields), byte(dt), byte(len(fields)))
	for _, f := range fields {
		out = append(out, byte(f.Type), byte(len(f.Data)>>8), byte(len(f.Data)))
		out = append(out, f.Data...)
	}
	if _, err := h.conn.Write(out); err != nil {
		return fmt.Errorf("t38 udp send data fields failed: %w", err)
	}
	return nil
}

// Close releases the underlying socket.
func (h *UDPHandler) Close() error { return h.conn.Close() }

// RxSession is the subset of *session.Session the ingress loop drives.
type RxSession interface {
	ProcessRxIndicator(ind Indicator)
	ProcessRxData(dt DataType, ft FieldType, buf []byte)
	ProcessRxMissing()
}

// Serve reads packets off the socket and dispatches them to sess until the
// socket is closed.
func (h *UDPHandler) Serve(sess RxSession) error {
	buf := make([]byte, 2048)
	for {
		n, err := h.conn.Read(buf)
		if err != nil {
			return fmt.Errorf("t38 udp receive failed: %w", err)
		}
		if n < 1 {
			continue
		}
		switch msgKind(buf[0]) {
		case msgIndicator:
			if n < 2 {
				continue
			}
			sess.ProcessRxIndicator(Indicator(buf[1]))
		case msgData:
			if n < 3 {
				continue
			}
			payload := append([]byte{}, buf[3:n]...)
			sess.ProcessRxData(DataType(buf[1]), FieldType(buf[2]), payload)
		case msgMissing:
			sess.ProcessRxMissing()
		case msgDataFields:
			if n < 3 {
				continue
			}
			dt := DataType(buf[1])
			pos := 3
			for i := 0; i < int(buf[2]); i++ {
				if pos+3 > n {
					break
				}
				ft := FieldType(buf[pos])
				l := int(buf[pos+1])<<8 | int(buf[pos+2])
				pos += 3
				if pos+l > n {
					break
				}
				payload := append([]byte{}, buf[pos:pos+l]...)
				pos += l
				sess.ProcessRxData(dt, ft, payload)
			}
		}
	}
}
