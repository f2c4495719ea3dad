// Command slipwayctl is a thin, non-interactive front end for running a
// single rig to completion: point it at a rig file, optionally override a
// handle's literal input, and it prints the run's final output map as
// JSON. It is not a debug REPL or a server — for those, embed pkg/driver
// directly.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/slipwayhq/slipway-go/pkg/capability"
	"github.com/slipwayhq/slipway-go/pkg/driver"
	"github.com/slipwayhq/slipway-go/pkg/loader"
	"github.com/slipwayhq/slipway-go/pkg/logging"
	"github.com/slipwayhq/slipway-go/pkg/metrics"
	"github.com/slipwayhq/slipway-go/pkg/permission"
	"github.com/slipwayhq/slipway-go/pkg/rig"
	"github.com/slipwayhq/slipway-go/pkg/runner"
	"github.com/slipwayhq/slipway-go/pkg/slconfig"
	"golang.org/x/time/rate"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// stalledError marks a run that finished without failing outright but
// never reached completion, so main can choose a distinct exit code.
type stalledError struct{ msg string }

func (e *stalledError) Error() string { return e.msg }

func exitCodeFor(err error) int {
	var stalled *stalledError
	if errors.As(err, &stalled) {
		return 2
	}
	return 1
}

type setFlag map[string]json.RawMessage

func (s setFlag) String() string { return "" }
func (s setFlag) Set(value string) error {
	handle, raw, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected handle=json, got %q", value)
	}
	if !json.Valid([]byte(raw)) {
		return fmt.Errorf("invalid json for handle %q: %s", handle, raw)
	}
	s[handle] = json.RawMessage(raw)
	return nil
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("slipwayctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	rigPath := fs.String("rig", "", "path to a rig JSON file")
	allowAll := fs.Bool("allow-all", false, "grant the run loop an unrestricted root permission set (local development only)")
	overrides := setFlag{}
	fs.Var(overrides, "set", "override a component's literal input, as handle=<json value>; repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rigPath == "" {
		return errors.New("-rig is required")
	}

	cfg, err := slconfig.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.Logging)

	data, err := os.ReadFile(*rigPath)
	if err != nil {
		return fmt.Errorf("read rig file: %w", err)
	}
	r, err := rig.Parse(data)
	if err != nil {
		return fmt.Errorf("parse rig: %w", err)
	}
	if err := rig.Validate(r); err != nil {
		return fmt.Errorf("validate rig: %w", err)
	}
	for handle, raw := range overrides {
		cr, ok := r.Rigging.Components[handle]
		if !ok {
			return fmt.Errorf("-set: no such component handle %q", handle)
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return fmt.Errorf("-set %s: %w", handle, err)
		}
		cr.Input = value
		r.Rigging.Components[handle] = cr
	}

	m := metrics.New()
	timeout := time.Duration(cfg.Loader.FetchTimeoutMS) * time.Millisecond
	chain := loader.NewChain(log, loader.NewLocalLoader(), loader.NewRegistryLoader(cfg.Loader.RegistryTemplates, timeout))
	cache := loader.NewCache(log, chain)
	cache.SetMetrics(m)

	var limiter *rate.Limiter
	if cfg.Capability.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Capability.RateLimitPerSecond), cfg.Capability.RateLimitBurst)
	}
	fonts := capability.NewDirFontStore(cfg.Capability.FontDir, nil, nil)
	surface := capability.New(cache, fonts, os.LookupEnv, log, limiter)
	surface.SetMetrics(m)

	runners := make([]runner.Runner, 3)
	runners[0] = runner.NewWasmRunner(ctx, surface, log)
	runners[1] = runner.NewJSRunner(surface, log)

	d := driver.New(cache, surface, runners, log, nil)
	d.SetMetrics(m)
	surface.SetCalloutInvoker(d)
	runners[2] = runner.NewFragmentRunner(d)

	rootPermissions := permission.Set{}
	if *allowAll {
		rootPermissions = permission.Set{Allow: []permission.Permission{permission.All()}}
	}

	result := d.Run(ctx, r, rootPermissions)
	switch result.Outcome {
	case driver.OutcomeFailed:
		if result.Err != nil {
			return result.Err
		}
		return errors.New("run failed")
	case driver.OutcomeStalled:
		return &stalledError{msg: "run stalled: no runnable component and not every component has output"}
	}

	output := map[string]any{}
	for handle, cs := range result.State.Components {
		if v, ok := cs.Output(); ok {
			output[handle] = v
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}
