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
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/buildgraph/pkg/ux"
	"github.com/AleutianAI/buildgraph/services/incr/driver"
	"github.com/AleutianAI/buildgraph/services/incr/engine"
	"github.com/AleutianAI/buildgraph/services/incr/graph"
	badgerstore "github.com/AleutianAI/buildgraph/services/incr/storage/badger"
)

// planJSON is the machine-readable form of a plan.
type planJSON struct {
	Dirty []string `json:"dirty"`
	Order []string `json:"order"`
}

// =============================================================================
// PLAN
// =============================================================================

func (a *app) planCmd() *cobra.Command {
	var (
		modified []string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print what must be rebuilt, in dependency order",
		Long: `Scans the project, compares every node's fingerprint with the one recorded
at its last build, and prints the dirty nodes so that each appears after its
dependencies. Nodes passed with --modified are treated as changed together
with everything that depends on them.

Exits with status 2 when the dirty nodes contain a dependency cycle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), false, func(s *driver.Session) error {
				plan, _, err := s.Plan(cmd.Context(), modified)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(a.stdout, planJSON{Dirty: plan.Dirty.Sorted(), Order: plan.Order})
				}
				a.printPlan(plan)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringSliceVarP(&modified, "modified", "m", nil, "node ids to treat as modified (repeatable)")
	f.BoolVar(&asJSON, "json", false, "print the plan as JSON")
	return cmd
}

func (a *app) printPlan(plan *engine.BuildPlan) {
	if plan.Empty() {
		a.out.Success("up to date")
		return
	}
	a.out.Title(fmt.Sprintf("%d node(s) to rebuild", len(plan.Order)))
	for _, id := range plan.Order {
		a.out.Item(ux.IconPending, id)
	}
}

// =============================================================================
// APPLY
// =============================================================================

func (a *app) applyCmd() *cobra.Command {
	var (
		modified []string
		only     []string
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Record the current fingerprints of a finished build",
		Long: `Recomputes the plan and records the fresh fingerprint of every planned node
as one build pass. Run it after the build succeeds. --only limits recording
to the listed nodes; the rest stay dirty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), true, func(s *driver.Session) error {
				plan, _, err := s.Plan(cmd.Context(), modified)
				if err != nil {
					return err
				}
				if len(only) > 0 {
					plan = restrict(plan, graph.NewSet(only...))
				}
				if plan.Empty() {
					a.out.Success("nothing to record")
					return nil
				}
				recorded, err := s.Apply(cmd.Context(), plan)
				if err != nil {
					return err
				}
				a.out.Success("recorded %d node(s) as build %d", len(recorded), s.Engine.Epoch())
				if skipped := len(plan.Order) - len(recorded); skipped > 0 {
					a.out.Warning("%d node(s) have no fingerprint and stay dirty", skipped)
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringSliceVarP(&modified, "modified", "m", nil, "node ids to treat as modified (repeatable)")
	f.StringSliceVar(&only, "only", nil, "record only these node ids")
	return cmd
}

// restrict keeps the planned nodes in keep, preserving order.
func restrict(plan *engine.BuildPlan, keep graph.Set) *engine.BuildPlan {
	out := &engine.BuildPlan{Dirty: graph.NewSet()}
	for _, id := range plan.Order {
		if keep.Has(id) {
			out.Dirty.Add(id)
			out.Order = append(out.Order, id)
		}
	}
	return out
}

// =============================================================================
// STATUS
// =============================================================================

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the recorded build state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), false, func(s *driver.Session) error {
				unbuilt := 0
				for _, id := range s.Engine.IDs() {
					if n, _ := s.Engine.Node(id); !n.HasFingerprint() {
						unbuilt++
					}
				}
				edges, err := s.Engine.Validate()
				if err != nil {
					return err
				}
				a.out.Title("incr status")
				a.out.KV("root", s.Config.Root)
				a.out.KV("state", s.Config.StateDir())
				a.out.KV("backend", s.Config.State.Backend)
				a.out.KV("nodes", s.Engine.Len())
				a.out.KV("edges", edges)
				a.out.KV("unbuilt", unbuilt)
				a.out.KV("builds", s.Engine.Epoch())
				if bs, ok := s.Store.(*badgerstore.SnapshotStore); ok {
					if at, err := bs.SavedAt(cmd.Context()); err == nil {
						a.out.KV("saved", at.Format(time.RFC3339))
					}
				}
				return nil
			})
		},
	}
}

// =============================================================================
// VALIDATE
// =============================================================================

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the graph's internal consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), false, func(s *driver.Session) error {
				edges, err := s.Engine.Validate()
				if err != nil {
					return err
				}
				a.out.Success("graph consistent: %d node(s), %d edge(s)", s.Engine.Len(), edges)
				return nil
			})
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
