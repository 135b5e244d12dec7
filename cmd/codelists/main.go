// Package main implements the codelists CLI tool.
// It resolves, compacts and expands clinical codelists against coding
// systems loaded from FHIR CodeSystem resources or YAML fixtures.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	codelists "github.com/opensafely-core/opencodelists-sub001"
	"github.com/opensafely-core/opencodelists-sub001/pkg/logger"
)

const version = "0.1.0"

// cli holds the state shared by all subcommands of one invocation.
type cli struct {
	configPath string
	flags      Config

	cfg    *Config
	opts   *codelists.Options
	log    *logger.Logger
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	defaults := DefaultConfig()

	root := &cobra.Command{
		Use:   "codelists",
		Short: "Build and inspect clinical codelists",
		Long: `codelists works with sets of clinical codes drawn from a hierarchical
coding system. It reports the status of every concept relative to a codelist,
compacts a codelist into include/exclude rules, expands rules back into codes,
and renders the tree of defining codes.

Coding systems are loaded from a terminology directory holding FHIR
CodeSystem/ValueSet JSON (single resources or Bundles) and YAML fixtures.`,
		Example: `  codelists --terminology ./terminology status asthma.yaml
  codelists --terminology ./terminology compact --tolerance 0.3 *.yaml
  codelists --terminology ./terminology expand 195967001< ~370218001
  codelists --terminology ./terminology --output json tree asthma.yaml
  codelists --config codelists.yaml ancestors 195967001`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "YAML config file")
	pf.StringVar(&c.flags.Terminology, "terminology", "", "Directory of CodeSystem/ValueSet JSON and YAML fixtures")
	pf.StringVar(&c.flags.System, "system", "", "Coding system URL (defaults to the only one loaded)")
	pf.StringVar(&c.flags.ConceptFilter, "concept-filter", "", "FHIRPath expression selecting which concepts to load")
	pf.StringVar((*string)(&c.flags.Output), "output", string(defaults.Output), "Output format: text, json")
	pf.Float64Var(&c.flags.Tolerance, "tolerance", defaults.Tolerance, "Noise tolerance used when compacting")
	pf.StringVar(&c.flags.Store, "store", "", "Directory for the persistent hierarchy store (in memory if empty)")
	pf.IntVar(&c.flags.CacheSize, "cache-size", defaults.CacheSize, "Hierarchies kept in memory")
	pf.StringVar(&c.flags.LogLevel, "log-level", defaults.LogLevel, "Log level: debug, info, warn, error, none")
	pf.IntVar(&c.flags.Workers, "workers", defaults.Workers, "Codelist files processed concurrently")
	pf.StringVar(&c.flags.Metrics, "metrics", "", "Write metrics in Prometheus text format to this file (\"-\" for stderr) on exit")

	root.AddCommand(
		newStatusCmd(c),
		newCompactCmd(c),
		newExpandCmd(c),
		newTreeCmd(c),
		newAncestorsCmd(c),
	)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\n\n%s", err, cmd.UsageString())
	})
	return root
}

// setup loads the configuration and installs the logger.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.opts = opts
	c.stderr = cmd.ErrOrStderr()
	c.log = logger.New(c.stderr, opts.LogLevel)
	logger.SetDefault(c.log)
	c.log.Debug("config: terminology=%s system=%s output=%s tolerance=%v workers=%d",
		cfg.Terminology, cfg.System, cfg.Output, opts.NoiseTolerance, opts.Workers)
	return nil
}
