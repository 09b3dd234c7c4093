package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/launchpad"
	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/registry"
	"github.com/GoCodeAlone/launchpad/startup"
)

// RunOptions holds the flags of the run command
type RunOptions struct {
	Name        string
	ConfigDirs  []string
	Profiles    []string
	Manifest    string
	MetricsAddr string
	ExitCode    int
	Once        bool
	Steps       bool
}

// NewRunCommand creates the command that runs the greeter application
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [-- app-args...]",
		Short: "Run the greeter application",
		Long: `Run a small application made of a greeter module and a runner. Config
files named application[-profile].{yaml,toml,json,env} are read from the
config directories; arguments after -- become command line properties,
for example: launchpad run --once -- --greeting=Hi --target=team`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApplication(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "greeter", "Application name")
	cmd.Flags().StringSliceVar(&opts.ConfigDirs, "config-dir", nil, "Directories searched for config files; later ones win")
	cmd.Flags().StringSliceVar(&opts.Profiles, "profile", nil, "Additional profiles to activate")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "Capability manifest (YAML or TOML) selecting the extensions to use")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve startup metrics on this address while running")
	cmd.Flags().IntVar(&opts.ExitCode, "exit-code", 0, "Exit code reported by the application when it stops")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "Stop as soon as the runners have finished instead of waiting for a signal")
	cmd.Flags().BoolVar(&opts.Steps, "steps", false, "Print the recorded startup steps after the run (with --once)")

	return cmd
}

func runApplication(cmd *cobra.Command, opts *RunOptions, args []string) error {
	steps := startup.NewBuffering(0)
	var collector startup.Collector = steps

	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		prom, err := startup.NewPrometheusCollector(reg)
		if err != nil {
			return err
		}
		collector = startup.Multi(steps, prom)
		stop := serveMetrics(opts.MetricsAddr, reg)
		defer stop()
	}

	appOpts, err := applicationOptions(cmd.OutOrStdout(), opts)
	if err != nil {
		return err
	}
	appOpts = append(appOpts, launchpad.WithStartupCollector(collector))
	if opts.Steps {
		defer printSteps(cmd.OutOrStdout(), steps)
	}

	app, err := launchpad.New(appOpts...)
	if err != nil {
		return err
	}

	if !opts.Once {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		launchpad.Main(ctx, app, args...)
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := app.Run(ctx, args...)
	if err != nil {
		return err
	}
	if code := launchpad.Exit(ctx, c); code != 0 {
		return launchpad.NewExitError(code, nil)
	}
	return nil
}

func applicationOptions(out io.Writer, opts *RunOptions) ([]launchpad.Option, error) {
	appOpts := []launchpad.Option{
		launchpad.WithName(opts.Name),
		launchpad.WithBannerOutput(out),
		launchpad.WithAdditionalProfiles(opts.Profiles...),
		launchpad.WithSources(&greeter{out: out}),
	}
	if len(opts.ConfigDirs) > 0 {
		appOpts = append(appOpts, launchpad.WithDefaultProperties(map[string]any{
			launchpad.ConfigLocationProperty: strings.Join(opts.ConfigDirs, ","),
		}))
	}
	if opts.ExitCode != 0 {
		code := opts.ExitCode
		appOpts = append(appOpts, launchpad.WithSources(container.Bean{
			Name:     "exit-code",
			Instance: launchpad.ExitCodeGeneratorFunc(func() int { return code }),
		}))
	}
	if opts.Once {
		appOpts = append(appOpts, launchpad.WithRegisterShutdownHook(false))
	}
	if opts.Manifest != "" {
		m, err := registry.LoadManifest(opts.Manifest)
		if err != nil {
			return nil, err
		}
		r := registry.NewRegistry()
		if err := launchpad.RegisterBuiltins(r); err != nil {
			return nil, err
		}
		appOpts = append(appOpts, launchpad.WithRegistry(r.WithSource(m)))
	}
	return appOpts, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printSteps(out io.Writer, steps *startup.Buffering) {
	for _, r := range steps.Records() {
		fmt.Fprintf(out, "%-40s %10s\n", r.Name, r.Duration.Round(time.Microsecond))
	}
}
