package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofhir/fhir/r4"
	"github.com/spf13/cobra"

	"github.com/opensafely-core/opencodelists-sub001/codeset"
	"github.com/opensafely-core/opencodelists-sub001/definition"
	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
	"github.com/opensafely-core/opencodelists-sub001/terminology"
)

// StatusOutput represents the JSON output of the status command.
type StatusOutput struct {
	Codelist  string            `json:"codelist"`
	System    string            `json:"system"`
	Statuses  map[string]string `json:"statuses"`
	Included  []string          `json:"included"`
	Excluded  []string          `json:"excluded"`
	Conflicts []string          `json:"conflicts,omitempty"`
}

// CompactOutput represents the JSON output of the compact command.
type CompactOutput struct {
	Codelist string   `json:"codelist"`
	System   string   `json:"system"`
	Codes    int      `json:"codes"`
	Rules    []string `json:"rules"`
}

// ExpandOutput represents the JSON output of the expand command.
type ExpandOutput struct {
	System    string                `json:"system"`
	Rules     []string              `json:"rules"`
	Codes     []string              `json:"codes"`
	Expansion *r4.ValueSetExpansion `json:"expansion"`
}

// TreeOutput represents the JSON output of the tree command.
type TreeOutput struct {
	Codelist string            `json:"codelist"`
	System   string            `json:"system"`
	Entries  []TreeEntryOutput `json:"entries"`
}

// TreeEntryOutput is one row of the defining tree.
type TreeEntryOutput struct {
	Code    string `json:"code"`
	Status  string `json:"status"`
	Display string `json:"display,omitempty"`
	Depth   int    `json:"depth"`
}

// AncestorsOutput represents the JSON output of the ancestors command.
type AncestorsOutput struct {
	System    string              `json:"system"`
	Ancestors map[string][]string `json:"ancestors"`
	Ultimate  []string            `json:"ultimate"`
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status <codelist>...",
		Short: "Show the status of every concept relative to codelists",
		Long: `Resolves each codelist against its hierarchy and prints the status of
every concept the codelist touches:

  +    included          -    excluded
  (+)  included by an ancestor
  (-)  excluded by an ancestor
  !    conflicting ancestors`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFiles(cmd, c, args, resolveStatus, printStatus)
		},
	}
}

func resolveStatus(ctx context.Context, e *engine, path string, list *codelistFile) (StatusOutput, error) {
	cs, err := e.system(list.System)
	if err != nil {
		return StatusOutput{}, err
	}
	out := StatusOutput{Codelist: path, System: cs.ID()}
	err = e.hierarchy(ctx, cs, list.Codes, func(h *hierarchy.Hierarchy) error {
		set, err := codeset.FromCodes(list.Codes.Set(), h)
		if err != nil {
			return err
		}
		e.builder.Metrics().RecordCodeset()

		out.Statuses = make(map[string]string)
		for code, status := range set.CodeToStatus() {
			out.Statuses[code] = string(status)
		}
		out.Included = set.Included().Sorted()
		out.Excluded = set.Excluded().Sorted()
		out.Conflicts = set.Conflicts().Sorted()
		return nil
	})
	return out, err
}

func newCompactCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "compact <codelist>...",
		Short: "Compact codelists into include/exclude rules",
		Long: `Derives the smallest rule set that reproduces each codelist exactly.
Rules are printed in the fragment language: "X" is the concept alone, "X<"
the concept and its descendants, and a leading "~" excludes.

--tolerance controls how many unwanted descendants a concept may have before
it stops being used as an include-with-descendants rule.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFiles(cmd, c, args, compactCodelist, printCompact)
		},
	}
}

func compactCodelist(ctx context.Context, e *engine, path string, list *codelistFile) (CompactOutput, error) {
	cs, err := e.system(list.System)
	if err != nil {
		return CompactOutput{}, err
	}
	codes := list.Codes.Set()
	out := CompactOutput{Codelist: path, System: cs.ID(), Codes: len(codes)}
	err = e.hierarchy(ctx, cs, list.Codes, func(h *hierarchy.Hierarchy) error {
		def, err := definition.FromCodes(codes, h, e.cli.opts.NoiseTolerance)
		if err != nil {
			return err
		}
		e.builder.Metrics().RecordDefinition()
		out.Rules = def.Query()
		return nil
	})
	return out, err
}

func newExpandCmd(c *cli) *cobra.Command {
	var valueSet string

	cmd := &cobra.Command{
		Use:   "expand [rule]...",
		Short: "Expand rules or a ValueSet compose into codes",
		Long: `Applies rules in order and prints the resulting codes. Rules use the
fragment language printed by compact; with --valueset the rules are taken
from the compose of a loaded ValueSet instead.`,
		Example: `  codelists expand 195967001< ~370218001
  codelists expand --valueset http://example.org/ValueSet/asthma`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (valueSet == "") == (len(args) == 0) {
				return errors.New("give either rules or --valueset")
			}
			e, err := c.openEngine()
			if err != nil {
				return err
			}
			defer closeEngine(e)

			out, err := expandRules(cmd.Context(), e, args, valueSet)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), c.cfg.Output, out, printExpand)
		},
	}
	cmd.Flags().StringVar(&valueSet, "valueset", "", "URL of a loaded ValueSet to expand")
	return cmd
}

func expandRules(ctx context.Context, e *engine, fragments []string, valueSet string) (ExpandOutput, error) {
	cs, err := e.system("")
	if err != nil {
		return ExpandOutput{}, err
	}

	var def *definition.Definition
	if valueSet != "" {
		vs, ok := e.registry.ValueSet(valueSet)
		if !ok {
			return ExpandOutput{}, fmt.Errorf("value set not loaded: %s", valueSet)
		}
		def, err = terminology.DefinitionFromCompose(vs.Compose, cs.ID())
	} else {
		def, err = definition.FromQuery(fragments)
	}
	if err != nil {
		return ExpandOutput{}, err
	}

	var ruleCodes hierarchy.CodeList
	for _, r := range def.Rules() {
		if !cs.Has(r.Code) {
			return ExpandOutput{}, fmt.Errorf("%w: %s", definition.ErrUnknownCode, r.Code)
		}
		ruleCodes = append(ruleCodes, r.Code)
	}

	out := ExpandOutput{System: cs.ID(), Rules: def.Query()}
	err = e.hierarchy(ctx, cs, ruleCodes, func(h *hierarchy.Hierarchy) error {
		codes := def.Codes(h)
		out.Codes = codes.Sorted()
		out.Expansion = terminology.ExpansionFromCodes(cs, codes)
		return nil
	})
	return out, err
}

func newTreeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <codelist>...",
		Short: "Show the tree of defining codes",
		Long: `Prints the codes that define each codelist (explicitly included or
excluded concepts), each below its nearest defining ancestor. Siblings are
ordered by display name.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFiles(cmd, c, args, definingTree, printTree)
		},
	}
}

func definingTree(ctx context.Context, e *engine, path string, list *codelistFile) (TreeOutput, error) {
	cs, err := e.system(list.System)
	if err != nil {
		return TreeOutput{}, err
	}
	out := TreeOutput{Codelist: path, System: cs.ID()}
	err = e.hierarchy(ctx, cs, list.Codes, func(h *hierarchy.Hierarchy) error {
		set, err := codeset.FromCodes(list.Codes.Set(), h)
		if err != nil {
			return err
		}
		e.builder.Metrics().RecordCodeset()

		for _, entry := range set.WalkDefiningTree(cs.Display) {
			out.Entries = append(out.Entries, TreeEntryOutput{
				Code:    entry.Code,
				Status:  string(entry.Status),
				Display: cs.Display(entry.Code),
				Depth:   entry.Depth,
			})
		}
		return nil
	})
	return out, err
}

func newAncestorsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ancestors <code>...",
		Short: "Show the ancestors of codes",
		Long: `Prints every ancestor of each code, and the subset of the given codes
that has no ancestor among the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.openEngine()
			if err != nil {
				return err
			}
			defer closeEngine(e)

			out, err := ancestors(cmd.Context(), e, args)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), c.cfg.Output, out, printAncestors)
		},
	}
}

func ancestors(ctx context.Context, e *engine, codes []string) (AncestorsOutput, error) {
	cs, err := e.system("")
	if err != nil {
		return AncestorsOutput{}, err
	}
	for _, code := range codes {
		if !cs.Has(code) {
			return AncestorsOutput{}, fmt.Errorf("%w: %s", definition.ErrUnknownCode, code)
		}
	}

	out := AncestorsOutput{System: cs.ID(), Ancestors: make(map[string][]string, len(codes))}
	err = e.hierarchy(ctx, cs, codes, func(h *hierarchy.Hierarchy) error {
		for _, code := range codes {
			out.Ancestors[code] = h.Ancestors(code).Sorted()
		}
		out.Ultimate = h.FilterToUltimateAncestors(hierarchy.NewCodeSet(codes...)).Sorted()
		return nil
	})
	return out, err
}

// runFiles applies resolve to every codelist matched by args and prints the
// results in argument order.
func runFiles[T any](cmd *cobra.Command, c *cli, args []string,
	resolve func(context.Context, *engine, string, *codelistFile) (T, error),
	show func(*printer, T),
) error {
	paths, err := expandPaths(args)
	if err != nil {
		return err
	}

	e, err := c.openEngine()
	if err != nil {
		return err
	}
	defer closeEngine(e)

	c.log.Info("Processing %d codelist(s)", len(paths))
	results, err := forEachCodelist(cmd.Context(), c.opts.Workers, paths,
		func(ctx context.Context, path string, list *codelistFile) (T, error) {
			return resolve(ctx, e, path, list)
		})
	if err != nil {
		return err
	}
	return printOutput(cmd.OutOrStdout(), c.cfg.Output, results, func(p *printer, results []T) {
		for _, r := range results {
			show(p, r)
		}
	})
}
