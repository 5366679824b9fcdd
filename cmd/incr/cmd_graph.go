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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/buildgraph/pkg/ux"
	"github.com/AleutianAI/buildgraph/services/incr/driver"
	"github.com/AleutianAI/buildgraph/services/incr/graph"
)

// =============================================================================
// DEPS
// =============================================================================

func (a *app) depsCmd() *cobra.Command {
	var (
		add    bool
		remove bool
	)
	cmd := &cobra.Command{
		Use:   "deps TARGET [DEP...]",
		Short: "Show or declare the dependencies of a target",
		Long: `Without DEP arguments, prints what TARGET depends on and what depends on it.

With DEP arguments, replaces TARGET's dependencies with exactly DEP... .
--add adds them to the existing set and --remove removes them. Node ids are
project-relative file paths or arbitrary target names.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if add && remove {
				return fmt.Errorf("--add and --remove are mutually exclusive")
			}
			target, deps := args[0], args[1:]
			if len(deps) == 0 {
				if add || remove {
					return fmt.Errorf("--add and --remove need at least one DEP")
				}
				return a.withSession(cmd.Context(), false, func(s *driver.Session) error {
					return a.showDeps(s, target)
				})
			}
			return a.withSession(cmd.Context(), true, func(s *driver.Session) error {
				switch {
				case add:
					for _, d := range deps {
						s.Engine.AddDep(target, d)
					}
				case remove:
					for _, d := range deps {
						if !s.Engine.RemoveDep(target, d) {
							a.out.Warning("%s does not depend on %s", target, d)
						}
					}
				default:
					s.Engine.SetDeps(target, deps)
				}
				a.out.Success("%s depends on %d node(s)", target, len(s.Engine.Predecessors(target)))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.BoolVar(&add, "add", false, "add DEP... to the existing dependencies")
	f.BoolVar(&remove, "remove", false, "remove DEP... from the dependencies")
	return cmd
}

func (a *app) showDeps(s *driver.Session, id string) error {
	node, ok := s.Engine.Node(id)
	if !ok {
		return fmt.Errorf("unknown node %q", id)
	}
	a.out.Title(id)
	if node.HasFingerprint() {
		a.out.KV("fingerprint", node.Fingerprint.String())
	} else {
		a.out.KV("fingerprint", "-")
	}
	if node.LastBuilt != nil {
		a.out.KV("last built", *node.LastBuilt)
	}
	a.out.KV("depends on", joinOrDash(s.Engine.Predecessors(id)))
	a.out.KV("needed by", joinOrDash(s.Engine.Successors(id)))
	return nil
}

// =============================================================================
// REMOVE
// =============================================================================

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID...",
		Aliases: []string{"rm"},
		Short:   "Remove nodes and every edge touching them",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), true, func(s *driver.Session) error {
				for _, id := range args {
					if _, ok := s.Engine.Node(id); !ok {
						a.out.Warning("unknown node %q", id)
						continue
					}
					s.Engine.RemoveNode(id)
					a.out.Item(ux.IconSuccess, "removed "+id)
				}
				return nil
			})
		},
	}
}

// =============================================================================
// MARK
// =============================================================================

func (a *app) markCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark ID...",
		Short: "Force nodes to be rebuilt by the next plan",
		Long: `Forgets the recorded fingerprint of each ID so the next plan treats it as
dirty, and prints every node affected by the change.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), true, func(s *driver.Session) error {
				affected := graph.NewSet()
				for _, id := range args {
					affected = affected.Union(s.Engine.MarkModified(id))
				}
				a.out.Success("marked %d node(s), %d affected", len(args), len(affected))
				for _, id := range affected.Sorted() {
					a.out.Item(ux.IconPending, id)
				}
				return nil
			})
		},
	}
}

// =============================================================================
// GC
// =============================================================================

func (a *app) gcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove nodes with no edges and no recorded fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), true, func(s *driver.Session) error {
				removed := s.Engine.GCOrphans()
				if len(removed) == 0 {
					a.out.Success("no orphans")
					return nil
				}
				a.out.Success("removed %d orphan(s)", len(removed))
				for _, id := range removed {
					a.out.Item(ux.IconArrow, id)
				}
				return nil
			})
		},
	}
}

func joinOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
