package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"fortio.org/safecast"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"weft/internal/ic"
	"weft/internal/icfile"
	"weft/internal/opt"
	"weft/internal/settings"
)

var optCmd = &cobra.Command{
	Use:   "opt [flags] FILE...",
	Short: "Optimize IC programs",
	Long: `Optimize one or more IC programs (.icpk or .json). Each input is written
next to itself as NAME.opt.EXT unless -o names the output of a single input.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOpt,
}

func init() {
	addOptFlags(optCmd)
}

func addOptFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "output path (single input only)")
	cmd.Flags().String("config", "", "settings file (default: nearest "+settings.FileName+")")
	cmd.Flags().Uint("max-iterations", 0, "cap on dataflow iterations per function")
	cmd.Flags().Uint("max-outer-iterations", 0, "cap on dataflow/fusion rounds")
	cmd.Flags().Bool("no-value-numbering", false, "disable value numbering")
	cmd.Flags().Bool("no-fusion", false, "disable continuation fusion")
	cmd.Flags().Bool("no-wait-lifting", false, "disable wait lifting")
	cmd.Flags().Bool("dce", false, "remove unused side-effect-free instructions")
	cmd.Flags().Bool("stats", false, "print per-function optimization statistics")
	cmd.Flags().Bool("dump-ic", false, "print the program after every pass")
	cmd.Flags().Int("jobs", 0, "max parallel files (0=auto)")
}

// fileResult is the outcome of optimizing one input. Output written by
// workers is buffered here and printed in input order.
type fileResult struct {
	Input  string
	Output string
	Result *opt.Result
	Dump   bytes.Buffer
}

func runOpt(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()

	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	if output != "" && len(args) != 1 {
		return fmt.Errorf("-o needs exactly one input, got %d", len(args))
	}
	showStats, err := cmd.Flags().GetBool("stats")
	if err != nil {
		return fmt.Errorf("failed to get stats flag: %w", err)
	}
	dumpIC, err := cmd.Flags().GetBool("dump-ic")
	if err != nil {
		return fmt.Errorf("failed to get dump-ic flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	useColor, err := colorEnabled(cmd, os.Stdout)
	if err != nil {
		return err
	}

	cfg, err := resolveSettings(cmd, ".")
	if err != nil {
		return err
	}
	if err := settings.Set(cfg); err != nil {
		return err
	}

	results := make([]*fileResult, len(args))
	for i, in := range args {
		out := output
		if out == "" {
			out = icfile.OutputPath(in)
		}
		results[i] = &fileResult{Input: in, Output: out}
	}

	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(min(jobs, len(args)))
	for _, fr := range results {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return optimizeFile(gctx, fr, settings.Current(), dumpIC, useColor)
		})
	}
	runErr := g.Wait()

	stdout := cmd.OutOrStdout()
	for _, fr := range results {
		if fr.Dump.Len() > 0 {
			_, _ = fr.Dump.WriteTo(stdout)
		}
		if fr.Result == nil {
			continue
		}
		if showStats {
			renderStats(stdout, fr.Input, fr.Result, useColor)
		}
		if showTimings {
			fmt.Fprint(stdout, fr.Result.Timings.String())
		}
		if !quiet {
			fmt.Fprintf(stdout, "wrote %s\n", fr.Output)
		}
	}
	return runErr
}

// optimizeFile reads, optimizes and writes one program. The output file is
// only written when Optimize succeeds.
func optimizeFile(ctx context.Context, fr *fileResult, cfg settings.Settings, dumpIC, useColor bool) error {
	return catchPanic(fr.Input, func() error {
		return optimizeOne(ctx, fr, cfg, dumpIC, useColor)
	})
}

// catchPanic converts a panic in fn into an error after dumping the ring
// trace. recover only sees the current goroutine, so each worker needs its
// own.
func catchPanic(input string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			dumpRingTrace(os.Stderr)
			err = fmt.Errorf("%s: optimizer panic: %v\n%s", input, r, debug.Stack())
		}
	}()
	return fn()
}

func optimizeOne(ctx context.Context, fr *fileResult, cfg settings.Settings, dumpIC, useColor bool) error {
	p, err := icfile.Read(fr.Input)
	if err != nil {
		return err
	}
	var opts []opt.Option
	if dumpIC {
		opts = append(opts, opt.WithPassHook(func(pass string, outer int, p *ic.Program) {
			writeDumpHeader(&fr.Dump, fr.Input, pass, outer)
			_ = ic.Dump(&fr.Dump, p, ic.DumpOptions{Color: useColor})
		}))
	}
	res, err := opt.Optimize(ctx, p, cfg, opts...)
	if err != nil {
		var defect *ic.DefectError
		if errors.As(err, &defect) {
			return fmt.Errorf("%s: internal optimizer defect: %w", fr.Input, err)
		}
		return fmt.Errorf("%s: %w", fr.Input, err)
	}
	if err := icfile.Write(fr.Output, p); err != nil {
		return err
	}
	fr.Result = res
	return nil
}

func writeDumpHeader(w io.Writer, input, pass string, outer int) {
	if outer == 0 {
		fmt.Fprintf(w, "== %s: after %s ==\n", input, pass)
		return
	}
	fmt.Fprintf(w, "== %s: after %s (round %d) ==\n", input, pass, outer)
}

// resolveSettings layers defaults, the settings file, WEFT_OPT_*
// variables and explicit flags, in that order.
func resolveSettings(cmd *cobra.Command, startDir string) (settings.Settings, error) {
	cfg := settings.Default()

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return cfg, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path == "" {
		found, ok, err := settings.Find(startDir)
		if err != nil {
			return cfg, err
		}
		if ok {
			path = found
		}
	}
	if path != "" {
		if cfg, err = settings.Load(path, cfg); err != nil {
			return cfg, err
		}
	}
	cfg = settings.ApplyEnv(cfg)

	flags := cmd.Flags()
	if flags.Changed("max-iterations") {
		n, err := uintFlag(cmd, "max-iterations")
		if err != nil {
			return cfg, err
		}
		cfg.MaxIterations = n
	}
	if flags.Changed("max-outer-iterations") {
		n, err := uintFlag(cmd, "max-outer-iterations")
		if err != nil {
			return cfg, err
		}
		cfg.MaxOuterIterations = n
	}
	for _, toggle := range []struct {
		name string
		dst  *bool
		neg  bool
	}{
		{"no-value-numbering", &cfg.ValueNumbering, true},
		{"no-fusion", &cfg.ContinuationFusion, true},
		{"no-wait-lifting", &cfg.WaitLifting, true},
		{"dce", &cfg.InlineDCE, false},
	} {
		if !flags.Changed(toggle.name) {
			continue
		}
		v, err := flags.GetBool(toggle.name)
		if err != nil {
			return cfg, fmt.Errorf("failed to get %s flag: %w", toggle.name, err)
		}
		*toggle.dst = v != toggle.neg
	}
	return cfg, cfg.Validate()
}

func uintFlag(cmd *cobra.Command, name string) (int, error) {
	u, err := cmd.Flags().GetUint(name)
	if err != nil {
		return 0, fmt.Errorf("failed to get %s flag: %w", name, err)
	}
	n, err := safecast.Conv[int](u)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", name, err)
	}
	return n, nil
}
