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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/buildgraph/pkg/ux"
	"github.com/AleutianAI/buildgraph/services/incr/config"
	"github.com/AleutianAI/buildgraph/services/incr/fingerprint"
)

// =============================================================================
// INIT
// =============================================================================

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [DIR]",
		Short: "Write a default " + config.FileName,
		Args:  cobra.MaximumNArgs(1),
		// Runs before any configuration exists.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			a.out = ux.NewPrinter(a.stdout, a.plain)
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(_ *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			} else if a.rootDir != "" {
				dir = a.rootDir
			}
			path := filepath.Join(dir, config.FileName)
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			a.out.Success("wrote %s", path)
			return nil
		},
	}
}

// =============================================================================
// SCAN
// =============================================================================

func (a *app) scanCmd() *cobra.Command {
	var (
		outFile  string
		asJSON   bool
		dirOnly  bool
		strategy string
	)
	cmd := &cobra.Command{
		Use:   "scan [DIR]",
		Short: "Fingerprint the files under a directory",
		Long: `Fingerprints every file under DIR (default: the project root) using the
configured strategy and include/exclude globs.

With --out the map is written atomically as JSON, suitable for "incr diff".
With --dir a single fingerprint for the whole tree is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := a.cfg.Root
			if len(args) == 1 {
				root = args[0]
			}
			s := a.cfg.Strategy()
			if strategy != "" {
				parsed, err := fingerprint.ParseStrategy(strategy)
				if err != nil {
					return err
				}
				s = parsed
			}
			opts := a.cfg.ScanOptions()

			if dirOnly {
				fp, err := fingerprint.DirectoryContext(cmd.Context(), root, opts, s)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, fp)
				return nil
			}

			fps, err := fingerprint.BuildMapContext(cmd.Context(), root, opts, s)
			if err != nil {
				return err
			}
			a.logger.Info("scan complete", "root", root, "files", len(fps), "strategy", s.String())

			if outFile != "" {
				data, err := json.MarshalIndent(fps, "", "  ")
				if err != nil {
					return err
				}
				if err := fingerprint.AtomicWrite(outFile, append(data, '\n')); err != nil {
					return err
				}
				a.out.Success("wrote %d fingerprints to %s", len(fps), outFile)
				return nil
			}
			if asJSON {
				return writeJSON(a.stdout, fps)
			}
			for _, rel := range sortedKeys(fps) {
				fmt.Fprintf(a.stdout, "%s  %s\n", fps[rel], rel)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&outFile, "out", "o", "", "write the fingerprint map to this file")
	f.BoolVar(&asJSON, "json", false, "print the map as JSON")
	f.BoolVar(&dirOnly, "dir", false, "print one fingerprint for the whole tree")
	f.StringVar(&strategy, "strategy", "", "meta, fast or full, overriding the config")
	return cmd
}

// =============================================================================
// DIFF
// =============================================================================

func (a *app) diffCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "diff PREV CURR",
		Short: "Compare two fingerprint maps written by scan --out",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			prev, err := readMap(args[0])
			if err != nil {
				return err
			}
			curr, err := readMap(args[1])
			if err != nil {
				return err
			}
			d := fingerprint.DiffMaps(prev, curr)
			if asJSON {
				return writeJSON(a.stdout, d)
			}
			if d.Empty() {
				a.out.Success("no changes")
				return nil
			}
			for _, p := range d.Added {
				fmt.Fprintf(a.stdout, "+ %s\n", p)
			}
			for _, p := range d.Changed {
				fmt.Fprintf(a.stdout, "~ %s\n", p)
			}
			for _, p := range d.Removed {
				fmt.Fprintf(a.stdout, "- %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the diff as JSON")
	return cmd
}

func readMap(path string) (map[string]fingerprint.Fingerprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]fingerprint.Fingerprint
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

func sortedKeys(m map[string]fingerprint.Fingerprint) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
