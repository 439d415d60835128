// Command qsolog imports, converts and exports ADIF contact logs.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"qsolog/config"
	"qsolog/geo"
	"qsolog/ingest"
	"qsolog/logging"
	"qsolog/qso"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "qsolog:", err)
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand once the root command has
// loaded configuration and built the logger.
type app struct {
	configDir string
	verbose   bool

	cfg      *config.Config
	logger   *zap.Logger
	closeLog func() error
	clock    clockwork.Clock

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr, logger: zap.NewNop(), clock: clockwork.NewRealClock()}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "qsolog",
		Short:         "Import, convert and export ADIF contact logs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVarP(&a.configDir, "config", "c", "", "configuration directory; every *.yaml in it is merged in name order")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newImportCmd(a),
		newAddCmd(a),
		newConvertCmd(a),
		newExportCmd(a),
		newLookupCmd(a),
		newEntitiesCmd(a),
		newFetchCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	logger, closeLog, err := logging.New(cfg.Logging, a.stderr)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.closeLog = closeLog
	if cfg.LoadedFrom != "" {
		logger.Debug("configuration loaded", zap.String("dir", cfg.LoadedFrom))
	}
	return nil
}

func (a *app) close() {
	if a.closeLog != nil {
		_ = a.closeLog()
		a.closeLog = nil
	}
}

func (a *app) owner() (qso.Owner, error) {
	owner, err := a.cfg.Owner.Build()
	if err != nil {
		return qso.Owner{}, err
	}
	if owner.Callsign == "" {
		a.logger.Warn("owner.callsign is not set; records without an operator field keep it empty")
	}
	return owner, nil
}

func (a *app) resolver() *geo.Resolver {
	r, _ := geo.Load(a.cfg.CTY, a.cfg.Region, a.logger)
	return r
}

// tuning holds the engine flags shared by import, add and convert.
type tuning struct {
	batchSize int
	workers   int
}

func (t *tuning) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&t.batchSize, "batch-size", 0, "records per commit batch (default from config)")
	cmd.Flags().IntVar(&t.workers, "workers", 0, "concurrent batch workers (default from config)")
}

func (a *app) engineOptions(t tuning, metrics *ingest.Metrics) ingest.Options {
	opts := ingest.Options{
		BatchSize: a.cfg.Ingest.BatchSize,
		Workers:   a.cfg.Ingest.Workers,
		Logger:    a.logger,
		Metrics:   metrics,
		Clock:     a.clock,
	}
	if t.batchSize > 0 {
		opts.BatchSize = t.batchSize
	}
	if t.workers > 0 {
		opts.Workers = t.workers
	}
	return opts
}

// parseFieldArgs turns TAG=VALUE arguments into a field map.
func parseFieldArgs(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, arg := range args {
		tag, value, ok := strings.Cut(arg, "=")
		tag = strings.TrimSpace(tag)
		if !ok || tag == "" {
			return nil, fmt.Errorf("field %q: want TAG=VALUE", arg)
		}
		fields[strings.ToLower(tag)] = value
	}
	return fields, nil
}
