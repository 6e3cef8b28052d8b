// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"fmt"
	"os"

	"github.com/gofax/t31modem/cmd"
)

// version and commit are overridden at build time via:
//
//	go build -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := cmd.NewCommand(version, commit).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
