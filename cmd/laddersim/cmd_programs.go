// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/laddersim/pkg/ux"
)

// programInfo is the JSON form of a listed program.
type programInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Rungs       int      `json:"rungs"`
	Subroutines []string `json:"subroutines,omitempty"`
	Listing     string   `json:"listing,omitempty"`
}

func newProgramsCmd(root *rootFlags) *cobra.Command {
	var listing bool
	cmd := &cobra.Command{
		Use:   "programs",
		Short: "List the built-in programs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := ux.ParseFormat(root.format)
			if err != nil {
				return err
			}
			if root.format == "auto" || root.format == "" {
				format = ux.DetectFormat(cmd.OutOrStdout())
			}
			p := ux.NewPrinter(cmd.OutOrStdout(), format)

			infos := make([]programInfo, 0, len(demos))
			for _, name := range demoNames() {
				d := demos[name]
				prog := d.build()
				info := programInfo{
					Name:        d.name,
					Description: d.description,
					Rungs:       len(prog.Rungs()),
					Subroutines: prog.SubroutineNames(),
				}
				if listing {
					info.Listing = prog.String()
				}
				infos = append(infos, info)
			}

			if p.Format() == ux.FormatJSON {
				return p.JSON(infos)
			}
			rows := make([][]ux.Cell, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []ux.Cell{
					{Text: info.Name, Kind: ux.CellOn},
					ux.Text(strconv.Itoa(info.Rungs)),
					ux.Text(info.Description),
				})
			}
			p.Table([]string{"Program", "Rungs", "Description"}, rows)
			if listing {
				for _, info := range infos {
					p.Title(info.Name)
					p.Line("%s", info.Listing)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&listing, "listing", false, "print each program's rungs")
	return cmd
}
