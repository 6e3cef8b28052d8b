// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package audioio_test

import (
	"path/filepath"
	"testing"

	"github.com/gofax/t31modem/internal/audioio"
)

func TestFileTransportRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "line.raw")

	sink, err := audioio.OpenFileSink(path)
	if err != nil {
		t.Fatalf("failed to open file sink: %v", err)
	}
	samples := []int16{100, -100, 32767, -32768, 0}
	if err := sink.WriteFrame(samples); err != nil {
		t.Fatalf("failed to write frame: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("failed to close sink: %v", err)
	}

	src, err := audioio.OpenFileSource(path)
	if err != nil {
		t.Fatalf("failed to open file source: %v", err)
	}
	defer src.Close()

	buf := make([]int16, len(samples))
	n, err := src.ReadFrame(buf)
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	if n != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), n)
	}
	for i, s := range samples {
		if buf[i] != s {
			t.Fatalf("sample %d: expected %d, got %d", i, s, buf[i])
		}
	}
}

func TestUDPTransportRoundTrip(t *testing.T) {
	b, err := audioio.OpenUDP("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("failed to open udp listener: %v", err)
	}
	defer b.Close()

	a, err := audioio.OpenUDP("127.0.0.1:0", b.LocalAddr())
	if err != nil {
		t.Fatalf("failed to open udp sender: %v", err)
	}
	defer a.Close()

	samples := []int16{1, 2, 3, -4, -5}
	if err := a.WriteFrame(samples); err != nil {
		t.Fatalf("failed to write frame: %v", err)
	}

	buf := make([]int16, len(samples))
	n, err := b.ReadFrame(buf)
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	if n != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), n)
	}
	for i, s := range samples {
		if buf[i] != s {
			t.Fatalf("sample %d: expected %d, got %d", i, s, buf[i])
		}
	}
}
