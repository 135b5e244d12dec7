package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// printer writes text output, keeping the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// printOutput writes v as indented JSON or, for text output, through text.
func printOutput[T any](w io.Writer, format OutputFormat, v T, text func(*printer, T)) error {
	if format == OutputJSON {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	p := &printer{w: w}
	text(p, v)
	return p.err
}

func printStatus(p *printer, out StatusOutput) {
	p.printf("== %s ==\n", out.Codelist)
	p.printf("System: %s\n", out.System)
	p.printf("Included: %d, Excluded: %d, Conflicts: %d\n\n",
		len(out.Included), len(out.Excluded), len(out.Conflicts))

	codes := make([]string, 0, len(out.Statuses))
	for code := range out.Statuses {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		p.printf("  %-4s %s\n", out.Statuses[code], code)
	}
	p.printf("\n")
}

func printCompact(p *printer, out CompactOutput) {
	p.printf("== %s ==\n", out.Codelist)
	p.printf("System: %s\n", out.System)
	p.printf("Codes: %d, Rules: %d\n\n", out.Codes, len(out.Rules))
	for _, rule := range out.Rules {
		p.printf("  %s\n", rule)
	}
	p.printf("\n")
}

func printExpand(p *printer, out ExpandOutput) {
	p.printf("Rules: %s\n", strings.Join(out.Rules, " "))
	p.printf("Codes: %d\n\n", len(out.Codes))
	for _, c := range out.Expansion.Contains {
		display := ""
		if c.Display != nil {
			display = *c.Display
		}
		p.printf("  %s\t%s\n", *c.Code, display)
	}
}

func printTree(p *printer, out TreeOutput) {
	p.printf("== %s ==\n", out.Codelist)
	for _, e := range out.Entries {
		p.printf("%s%-4s %s", strings.Repeat("  ", e.Depth+1), e.Status, e.Code)
		if e.Display != "" {
			p.printf(" %s", e.Display)
		}
		p.printf("\n")
	}
	p.printf("\n")
}

func printAncestors(p *printer, out AncestorsOutput) {
	codes := make([]string, 0, len(out.Ancestors))
	for code := range out.Ancestors {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		p.printf("%s: %s\n", code, strings.Join(out.Ancestors[code], " "))
	}
	p.printf("Ultimate ancestors: %s\n", strings.Join(out.Ultimate, " "))
}
