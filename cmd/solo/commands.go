package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/solo/internal/config"
	"github.com/loykin/solo/internal/history"
	"github.com/loykin/solo/internal/metrics"
	"github.com/loykin/solo/internal/supervisor"
)

var version = "dev"

// buildRoot creates the root command with the four lifecycle subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	serviceFlags := &ServiceFlags{}
	statusFlags := &StatusFlags{}
	c := &command{global: globalFlags, service: serviceFlags}

	root := &cobra.Command{
		Use:           "solo",
		Short:         "solo supervises a single long-running process on this host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "path to TOML config file")
	addServiceFlags(root, serviceFlags)

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the service unless it is already running",
		RunE:  func(_ *cobra.Command, _ []string) error { return c.Start() },
	}
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the service; stopping a stopped service is success",
		RunE:  func(_ *cobra.Command, _ []string) error { return c.Stop() },
	}
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Stop then start the service",
		RunE:  func(_ *cobra.Command, _ []string) error { return c.Restart() },
	}
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report the current state without changing anything",
		RunE:  func(_ *cobra.Command, _ []string) error { return c.Status(*statusFlags) },
	}
	statusCmd.Flags().BoolVar(&statusFlags.JSON, "json", false, "machine-readable output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("solo %s\n", version)
		},
	}

	root.AddCommand(startCmd, stopCmd, restartCmd, statusCmd, versionCmd)
	return root
}

func addServiceFlags(root *cobra.Command, f *ServiceFlags) {
	pf := root.PersistentFlags()
	pf.StringVar(&f.Name, "name", "", "service name")
	pf.StringVar(&f.Command, "command", "", "launch command")
	pf.StringVar(&f.WorkDir, "workdir", "", "working directory for the child")
	pf.StringVar(&f.PIDFile, "pidfile", "", "pid file path")
	pf.StringVar(&f.Bind, "bind", "", "host:port the child must listen on")
	pf.StringVar(&f.LogDir, "log-dir", "", "directory for child and supervisor logs")
	pf.DurationVar(&f.GracePeriod, "grace", 0, "wait for the listener after spawning")
	pf.DurationVar(&f.StopWait, "stop-wait", 0, "wait after TERM before KILL")
	pf.IntVar(&f.TailLines, "log-tail", 0, "child log lines shown on start failure")
}

// command binds the flag sets to the subcommand handlers.
type command struct {
	global  *GlobalFlags
	service *ServiceFlags
}

// invocation is everything assembled for one subcommand run.
type invocation struct {
	sup      *supervisor.Supervisor
	spec     supervisor.Spec
	sink     history.Sink
	textfile string
	log      *slog.Logger
	closers  []func()
}

func (c *command) setup() (*invocation, error) {
	var fc *config.FileConfig
	if c.global.ConfigPath != "" {
		loaded, err := config.Load(c.global.ConfigPath)
		if err != nil {
			return nil, err
		}
		fc = loaded
	} else {
		fc = &config.FileConfig{}
	}

	spec := fc.Spec()
	applyOverrides(&spec, c.service)

	log, closeLog := spec.Log.NewLogger(spec.Name)
	inv := &invocation{spec: spec, log: log, sink: history.Nop{}}
	inv.closers = append(inv.closers, closeLog)

	sup, err := supervisor.New(spec, nil, nil, log)
	if err != nil {
		inv.Close()
		return nil, err
	}
	inv.sup = sup

	if fc.History.Enabled && fc.History.DSN != "" {
		sink, err := history.NewSQLite(fc.History.DSN)
		if err != nil {
			// History must not block operating the service.
			log.Warn("history disabled", "error", err)
		} else {
			inv.sink = sink
			inv.closers = append(inv.closers, func() { _ = sink.Close() })
		}
	}
	if fc.Metrics.Textfile != "" {
		inv.textfile = fc.Metrics.Textfile
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			log.Warn("metrics disabled", "error", err)
			inv.textfile = ""
		}
	}
	return inv, nil
}

func applyOverrides(spec *supervisor.Spec, f *ServiceFlags) {
	if f.Name != "" {
		spec.Name = f.Name
	}
	if f.Command != "" {
		spec.Command = f.Command
	}
	if f.WorkDir != "" {
		spec.WorkDir = f.WorkDir
	}
	if f.PIDFile != "" {
		spec.PIDFile = f.PIDFile
	}
	if f.Bind != "" {
		spec.Bind = f.Bind
	}
	if f.LogDir != "" {
		spec.Log.Dir = f.LogDir
	}
	if f.GracePeriod > 0 {
		spec.GracePeriod = f.GracePeriod
	}
	if f.StopWait > 0 {
		spec.StopWait = f.StopWait
	}
	if f.TailLines > 0 {
		spec.LogTailLines = f.TailLines
	}
}

func (inv *invocation) Close() {
	for _, f := range inv.closers {
		f()
	}
}

// record appends the action outcome to history and refreshes the metrics
// textfile. Both are best-effort.
func (inv *invocation) record(action string, st supervisor.Status, detail string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := inv.sink.Send(ctx, history.Event{
		OccurredAt: time.Now(),
		Name:       inv.spec.Name,
		Action:     action,
		State:      string(st.State),
		PID:        st.PID,
		Detail:     detail,
	}); err != nil {
		inv.log.Warn("history write failed", "error", err)
	}
	if inv.textfile != "" {
		metrics.SetState(inv.spec.Name, string(st.State))
		if err := metrics.WriteTextfile(inv.textfile, prometheus.DefaultGatherer); err != nil {
			inv.log.Warn("metrics write failed", "error", err)
		}
	}
}

func (c *command) Start() error {
	inv, err := c.setup()
	if err != nil {
		return err
	}
	defer inv.Close()
	return runStart(inv, "start", func() (supervisor.StartResult, error) { return inv.sup.Start() })
}

func (c *command) Restart() error {
	inv, err := c.setup()
	if err != nil {
		return err
	}
	defer inv.Close()
	return runStart(inv, "restart", func() (supervisor.StartResult, error) { return inv.sup.Restart() })
}

// runStart shares the outcome handling between start and restart, which
// have identical failure semantics.
func runStart(inv *invocation, action string, op func() (supervisor.StartResult, error)) error {
	res, err := op()
	if err != nil {
		st, _ := inv.sup.Status()
		metrics.RecordStart(inv.spec.Name, startResultLabel(err))
		inv.record(action, st, err.Error())
		return err
	}
	switch {
	case res.AlreadyRunning:
		metrics.RecordStart(inv.spec.Name, "already-running")
		fmt.Printf("%s already running (pid %d)\n", inv.spec.Name, res.Status.PID)
	default:
		metrics.RecordStart(inv.spec.Name, "ok")
		fmt.Printf("%s running (pid %d, listening on %s)\n", inv.spec.Name, res.Status.PID, inv.spec.Bind)
	}
	inv.record(action, res.Status, "")
	return nil
}

func startResultLabel(err error) string {
	var pc *supervisor.PortConflictError
	if errors.As(err, &pc) {
		return "port-conflict"
	}
	var se *supervisor.StartError
	if errors.As(err, &se) {
		return string(se.Reason)
	}
	return "error"
}

func (c *command) Stop() error {
	inv, err := c.setup()
	if err != nil {
		return err
	}
	defer inv.Close()

	st, err := inv.sup.Stop()
	metrics.RecordStop(inv.spec.Name)
	if err != nil {
		obs, _ := inv.sup.Status()
		inv.record("stop", obs, err.Error())
		return err
	}
	fmt.Printf("%s stopped\n", inv.spec.Name)
	inv.record("stop", st, "")
	return nil
}

func (c *command) Status(f StatusFlags) error {
	inv, err := c.setup()
	if err != nil {
		return err
	}
	defer inv.Close()

	st, err := inv.sup.Status()
	if err != nil {
		return err
	}
	if f.JSON {
		printJSON(st)
	} else {
		fmt.Println(formatStatus(st))
	}
	inv.record("status", st, "")
	return nil
}
