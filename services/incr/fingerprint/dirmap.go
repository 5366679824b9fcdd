// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fingerprint

import (
	"context"
	"path/filepath"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	tracer = otel.Tracer("buildgraph.incr.fingerprint")
	meter  = otel.Meter("buildgraph.incr.fingerprint")

	filesHashed metric.Int64Counter
)

func init() {
	var err error
	filesHashed, err = meter.Int64Counter("incr_fingerprint_files_total",
		metric.WithDescription("Files fingerprinted by directory scans"),
	)
	if err != nil {
		otel.Handle(err)
	}
}

// DefaultConcurrency is the worker bound used when Options.Concurrency is
// not positive.
func DefaultConcurrency() int {
	return runtime.GOMAXPROCS(0)
}

// BuildMap fingerprints every listed file under root.
//
// Equivalent to BuildMapContext with context.Background().
func BuildMap(root string, o Options, s Strategy) (map[string]Fingerprint, error) {
	return BuildMapContext(context.Background(), root, o, s)
}

// BuildMapContext fingerprints every listed file under root.
//
// Description:
//
//	Lists root with ListFilesRecursive and fingerprints each file with
//	strategy s. Files are hashed by at most o.Concurrency workers. The first
//	failure cancels the remaining work.
//
// Inputs:
//
//	ctx - Cancels outstanding hashing.
//	root - Directory to scan.
//	o - Listing and concurrency options.
//	s - File strategy.
//
// Outputs:
//
//	map[string]Fingerprint - Relative path to fingerprint.
//	error - *IOError, or ctx.Err() when cancelled.
func BuildMapContext(ctx context.Context, root string, o Options, s Strategy) (map[string]Fingerprint, error) {
	files, fps, err := scan(ctx, root, o, s)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Fingerprint, len(files))
	for i, rel := range files {
		out[rel] = fps[i]
	}
	return out, nil
}

// Directory fingerprints a whole tree.
//
// Equivalent to DirectoryContext with context.Background().
func Directory(root string, o Options, s Strategy) (Fingerprint, error) {
	return DirectoryContext(context.Background(), root, o, s)
}

// DirectoryContext fingerprints a whole tree.
//
// Starting from OffsetBasis, each listed file in sorted order contributes
// its relative path bytes through FoldBytes followed by Fold of its file
// fingerprint. An empty tree yields OffsetBasis.
func DirectoryContext(ctx context.Context, root string, o Options, s Strategy) (Fingerprint, error) {
	files, fps, err := scan(ctx, root, o, s)
	if err != nil {
		return 0, err
	}
	acc := OffsetBasis
	for i, rel := range files {
		acc = FoldBytes(acc, []byte(rel))
		acc = Fold(acc, uint64(fps[i]))
	}
	return acc, nil
}

func scan(ctx context.Context, root string, o Options, s Strategy) ([]string, []Fingerprint, error) {
	ctx, span := tracer.Start(ctx, "fingerprint.scan",
		trace.WithAttributes(
			attribute.String("root", root),
			attribute.String("strategy", s.String()),
		),
	)
	defer span.End()

	files, err := ListFilesRecursive(root, o)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, nil, err
	}

	fps := make([]Fingerprint, len(files))
	g, gctx := errgroup.WithContext(ctx)
	workers := o.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency()
	}
	g.SetLimit(workers)

	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fp, err := File(filepath.Join(root, filepath.FromSlash(rel)), s)
			if err != nil {
				return err
			}
			fps[i] = fp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "hash failed")
		return nil, nil, err
	}

	span.SetAttributes(attribute.Int("files", len(files)))
	filesHashed.Add(ctx, int64(len(files)),
		metric.WithAttributes(attribute.String("strategy", s.String())))
	return files, fps, nil
}
