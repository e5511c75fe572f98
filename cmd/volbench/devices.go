// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/gudavol"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Describe the compute devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			version, _ := gudavol.Version()
			if version == "" {
				version = "(devel)"
			}
			fmt.Fprintf(out, "gudavol %s, %s %s/%s\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "Devices: %d\n", gudavol.GetDeviceCount())

			d := gudavol.GetDevice()
			fmt.Fprintf(out, "  [%d] %s\n", d.ID, d.Name)
			fmt.Fprintf(out, "      cores:       %d\n", d.NumCores)
			fmt.Fprintf(out, "      max threads: %d\n", d.MaxThreads)
			fmt.Fprintf(out, "      memory:      %d MiB\n", d.TotalMem>>20)
			fmt.Fprintf(out, "      features:    %s\n", strings.Join(d.Features, " "))
			fmt.Fprintf(out, "      strategies:  %s\n", strategyNames())
			return nil
		},
	}
}

func strategyNames() string {
	names := make([]string, len(gudavol.Strategies))
	for i, s := range gudavol.Strategies {
		names[i] = s.String()
	}
	return strings.Join(names, ", ")
}
