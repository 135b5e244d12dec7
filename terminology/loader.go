package terminology

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofhir/fhir/r4"
	"gopkg.in/yaml.v3"

	"github.com/opensafely-core/opencodelists-sub001/service"
)

// LoadStats contains statistics about terminology loading.
type LoadStats struct {
	CodeSystemsLoaded int64
	ValueSetsLoaded   int64
	Errors            int64
}

func (s *LoadStats) add(other *LoadStats) {
	s.CodeSystemsLoaded += other.CodeSystemsLoaded
	s.ValueSetsLoaded += other.ValueSetsLoaded
	s.Errors += other.Errors
}

// envelope is the part of any FHIR resource needed to route it. Entry is
// only set on Bundles.
type envelope struct {
	ResourceType string `json:"resourceType"`
	Entry        []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

// LoadFromJSON loads a CodeSystem, a ValueSet, or every CodeSystem and
// ValueSet in a Bundle. Bundle entries that fail to load are counted in
// Errors; a single resource that fails is returned as an error.
func (r *Registry) LoadFromJSON(data []byte) (*LoadStats, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	stats := &LoadStats{}
	switch env.ResourceType {
	case "Bundle":
		r.loadBundle(env, stats)
	case "CodeSystem", "ValueSet":
		if err := r.loadResource(env.ResourceType, data, stats); err != nil {
			stats.Errors++
			return stats, err
		}
	default:
		return nil, fmt.Errorf("unsupported resourceType: %s", env.ResourceType)
	}
	return stats, nil
}

// loadBundle loads CodeSystems before ValueSets; other entries are skipped.
func (r *Registry) loadBundle(env envelope, stats *LoadStats) {
	byType := make(map[string][]json.RawMessage)
	for _, entry := range env.Entry {
		if entry.Resource == nil {
			continue
		}
		var inner envelope
		if err := json.Unmarshal(entry.Resource, &inner); err != nil {
			continue
		}
		byType[inner.ResourceType] = append(byType[inner.ResourceType], entry.Resource)
	}

	for _, kind := range []string{"CodeSystem", "ValueSet"} {
		for _, raw := range byType[kind] {
			if err := r.loadResource(kind, raw, stats); err != nil {
				stats.Errors++
			}
		}
	}
}

func (r *Registry) loadResource(kind string, raw []byte, stats *LoadStats) error {
	switch kind {
	case "CodeSystem":
		var cs r4.CodeSystem
		if err := json.Unmarshal(raw, &cs); err != nil {
			return fmt.Errorf("parse CodeSystem: %w", err)
		}
		if _, err := r.LoadR4CodeSystem(&cs); err != nil {
			return err
		}
		stats.CodeSystemsLoaded++
	case "ValueSet":
		var vs r4.ValueSet
		if err := json.Unmarshal(raw, &vs); err != nil {
			return fmt.Errorf("parse ValueSet: %w", err)
		}
		if err := r.LoadR4ValueSet(&vs); err != nil {
			return err
		}
		stats.ValueSetsLoaded++
	}
	return nil
}

// Fixture is the YAML form of a small coding system, used for tests and
// local experiments:
//
//	id: example
//	root: "138875005"
//	concepts:
//	  "73211009": Diabetes mellitus
//	children:
//	  "138875005": ["73211009"]
type Fixture struct {
	ID       string              `yaml:"id"`
	Root     string              `yaml:"root"`
	Concepts map[string]string   `yaml:"concepts"`
	Children map[string][]string `yaml:"children"`
}

// LoadYAML registers the coding system described by a YAML Fixture.
func (r *Registry) LoadYAML(data []byte) (*CodingSystem, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCodeSystem, err)
	}

	var edges []service.Edge
	for parent, children := range f.Children {
		for _, child := range children {
			edges = append(edges, service.Edge{Parent: parent, Child: child})
		}
	}

	cs, err := NewCodingSystem(f.ID, f.Root, f.Concepts, edges)
	if err != nil {
		return nil, err
	}
	r.Register(cs)
	return cs, nil
}

// File kinds, in loading order: CodeSystems and fixtures must be registered
// before the ValueSets that refer to them.
const (
	fileCodeSystem = iota
	fileFixture
	fileOther
	fileSkipped
)

func classifyFile(name string) int {
	switch ext := filepath.Ext(name); {
	case ext == ".yaml" || ext == ".yml":
		return fileFixture
	case ext != ".json", name == "package.json", name == ".index.json":
		return fileSkipped
	case strings.HasPrefix(name, "CodeSystem-"):
		return fileCodeSystem
	default:
		return fileOther
	}
}

// LoadFromDirectory loads CodeSystem/ValueSet JSON (single resources or
// Bundles) and YAML fixtures from the top level of dirPath. Files that cannot
// be read or loaded are counted in Errors.
func (r *Registry) LoadFromDirectory(dirPath string) (*LoadStats, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dirPath)
	}
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	type file struct {
		path string
		kind int
	}
	var files []file
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if kind := classifyFile(entry.Name()); kind != fileSkipped {
			files = append(files, file{path: filepath.Join(dirPath, entry.Name()), kind: kind})
		}
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].kind < files[j].kind })

	stats := &LoadStats{}
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			stats.Errors++
			continue
		}
		if f.kind == fileFixture {
			if _, err := r.LoadYAML(data); err != nil {
				stats.Errors++
				continue
			}
			stats.CodeSystemsLoaded++
			continue
		}

		s, err := r.LoadFromJSON(data)
		switch {
		case s != nil:
			stats.add(s)
		case err != nil:
			stats.Errors++
		}
	}
	return stats, nil
}
