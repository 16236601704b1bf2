// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// mhistat - MHI indoor unit frame analyzer and controller
//
// A CLI tool for monitoring, decoding and controlling Mitsubishi Heavy
// Industries air-conditioner indoor units over their serial frame link.

package main

import (
	"os"

	"github.com/Thermoquad/mhistat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
