package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
	"github.com/opensafely-core/opencodelists-sub001/store"
	"github.com/opensafely-core/opencodelists-sub001/terminology"
)

// engine bundles the loaded terminology with the hierarchy builder.
type engine struct {
	cli      *cli
	registry *terminology.Registry
	builder  *store.Builder
}

// openEngine loads the terminology directory and opens the hierarchy store.
func (c *cli) openEngine() (*engine, error) {
	if c.cfg.Terminology == "" {
		return nil, errors.New("no terminology directory given (use --terminology or the config file)")
	}

	var regOpts []terminology.Option
	if c.cfg.ConceptFilter != "" {
		regOpts = append(regOpts, terminology.WithConceptFilter(c.cfg.ConceptFilter))
	}
	registry, err := terminology.NewRegistry(regOpts...)
	if err != nil {
		return nil, err
	}

	stats, err := registry.LoadFromDirectory(c.cfg.Terminology)
	if err != nil {
		return nil, fmt.Errorf("load terminology: %w", err)
	}
	c.log.Info("Loaded %d coding system(s) and %d value set(s) from %s",
		stats.CodeSystemsLoaded, stats.ValueSetsLoaded, c.cfg.Terminology)
	if stats.Errors > 0 {
		c.log.Warn("%d terminology file(s) or resource(s) could not be loaded", stats.Errors)
	}

	var st store.Store
	if !c.opts.InMemoryStore {
		cfg := store.DefaultConfig(c.opts.StorePath)
		cfg.Logger = c.log
		bs, err := store.OpenBadger(cfg)
		if err != nil {
			return nil, err
		}
		st = bs
	}

	builder, err := store.NewBuilder(registry, st,
		store.WithCacheSize(c.opts.CacheSize),
		store.WithLogger(c.log),
	)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}
	return &engine{cli: c, registry: registry, builder: builder}, nil
}

// Close reports the run's metrics and closes the store.
func (e *engine) Close() error {
	snap := e.builder.Metrics().Snapshot()
	e.cli.log.Debug("hierarchies built: %d (avg %s), store hits: %d, misses: %d, errors: %d",
		snap.HierarchiesBuilt, time.Duration(snap.AvgBuildTimeNs), snap.StoreHits, snap.StoreMisses, snap.StoreErrors)
	if path := e.cli.cfg.Metrics; path != "" {
		if err := e.writeMetrics(path); err != nil {
			e.cli.log.Warn("Writing metrics to %s: %v", path, err)
		}
	}
	return e.builder.Close()
}

// writeMetrics gathers the builder's metrics through a Prometheus registry
// and writes them in the text exposition format to path, or stderr for "-".
func (e *engine) writeMetrics(path string) (err error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(e.builder.Metrics()); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}

	w := e.cli.stderr
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func closeEngine(e *engine) {
	if err := e.Close(); err != nil {
		e.cli.log.Warn("Closing store: %v", err)
	}
}

// system picks the coding system for an input: its own declaration first,
// then the configured one, then the only one loaded.
func (e *engine) system(declared string) (*terminology.CodingSystem, error) {
	id := declared
	if id == "" {
		id = e.cli.cfg.System
	}
	if id == "" {
		ids := e.registry.IDs()
		if len(ids) != 1 {
			return nil, fmt.Errorf("%d coding systems loaded (%s); choose one with --system",
				len(ids), strings.Join(ids, ", "))
		}
		id = ids[0]
	}
	return e.registry.Lookup(id)
}

// hierarchy returns the hierarchy spanning codes, saving it back to the store
// once fn has run so that closures computed by fn are kept.
func (e *engine) hierarchy(ctx context.Context, cs *terminology.CodingSystem, codes []string, fn func(h *hierarchy.Hierarchy) error) error {
	h, err := e.builder.Hierarchy(ctx, cs.ID(), codes)
	if err != nil {
		return err
	}
	if err := fn(h); err != nil {
		return err
	}
	if err := e.builder.Save(ctx, cs.ID(), codes, h); err != nil {
		e.cli.log.Warn("Could not save hierarchy for %s: %v", cs.ID(), err)
	}
	return nil
}

// codelistFile is the on-disk form of a codelist: either a bare list of
// codes or a mapping naming the coding system as well.
//
//	system: http://snomed.info/sct
//	codes: ["195967001", "370218001"]
type codelistFile struct {
	System string             `yaml:"system"`
	Codes  hierarchy.CodeList `yaml:"codes"`
}

// readCodelist reads a YAML or JSON codelist from path, or stdin for "-".
func readCodelist(path string) (*codelistFile, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%s: empty codelist", path)
	}

	var f codelistFile
	node := doc.Content[0]
	if node.Kind != yaml.MappingNode {
		err = node.Decode(&f.Codes)
	} else {
		err = node.Decode(&f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(f.Codes) == 0 {
		return nil, fmt.Errorf("%s: no codes", path)
	}
	return &f, nil
}

// expandPaths resolves glob patterns, keeping "-" for stdin.
func expandPaths(patterns []string) ([]string, error) {
	var paths []string
	for _, pattern := range patterns {
		if pattern == "-" {
			paths = append(paths, pattern)
			continue
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("error with pattern '%s': %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match pattern: %s", pattern)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

// forEachCodelist runs fn over every codelist file with at most workers
// running at once. Results keep the order of paths.
func forEachCodelist[T any](ctx context.Context, workers int, paths []string,
	fn func(ctx context.Context, path string, list *codelistFile) (T, error),
) ([]T, error) {
	results := make([]T, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			list, err := readCodelist(path)
			if err != nil {
				return err
			}
			out, err := fn(ctx, path, list)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
