// Package config loads the TOML configuration file and turns it into a
// supervisor Spec. CLI flags override file values; the merge happens in the
// command layer, this package only parses and validates.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/solo/internal/logger"
	"github.com/loykin/solo/internal/supervisor"
)

// FileConfig represents the top-level TOML structure:
//
//	env = ["KEY=value"]
//	use_os_env = true
//
//	[service]
//	name = "docuexpress"
//	command = "gunicorn --workers 3 --bind 127.0.0.1:8000 app:app"
//	workdir = "/srv/docuexpress"
//	pidfile = "/run/docuexpress/gunicorn.pid"
//	bind = "127.0.0.1:8000"
//	grace_period = "5s"
//	stop_wait = "5s"
//
//	[log]
//	dir = "/var/log/docuexpress"
//
//	[history]
//	enabled = true
//	dsn = "/var/lib/solo/history.db"
//
//	[metrics]
//	textfile = "/var/lib/node_exporter/solo.prom"
type FileConfig struct {
	Env      []string      `toml:"env" mapstructure:"env"`
	UseOSEnv bool          `toml:"use_os_env" mapstructure:"use_os_env"`
	Service  ServiceConfig `toml:"service" mapstructure:"service"`
	Log      logger.Config `toml:"log" mapstructure:"log"`
	History  HistoryConfig `toml:"history" mapstructure:"history"`
	Metrics  MetricsConfig `toml:"metrics" mapstructure:"metrics"`
}

type ServiceConfig struct {
	Name         string        `toml:"name" mapstructure:"name"`
	Command      string        `toml:"command" mapstructure:"command"`
	WorkDir      string        `toml:"workdir" mapstructure:"workdir"`
	Env          []string      `toml:"env" mapstructure:"env"`
	PIDFile      string        `toml:"pidfile" mapstructure:"pidfile"`
	Bind         string        `toml:"bind" mapstructure:"bind"`
	GracePeriod  time.Duration `toml:"grace_period" mapstructure:"grace_period"`
	StopWait     time.Duration `toml:"stop_wait" mapstructure:"stop_wait"`
	LogTailLines int           `toml:"log_tail_lines" mapstructure:"log_tail_lines"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	DSN     string `toml:"dsn" mapstructure:"dsn"`
}

type MetricsConfig struct {
	Textfile string `toml:"textfile" mapstructure:"textfile"`
}

// Load parses the TOML file at path.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &fc, nil
}

// Spec builds the supervisor Spec, merging the environment. Precedence:
// OS env (when use_os_env) as base, then the top-level env list, then the
// service env list, later entries overriding earlier keys.
func (fc *FileConfig) Spec() supervisor.Spec {
	return supervisor.Spec{
		Name:         fc.Service.Name,
		Command:      fc.Service.Command,
		WorkDir:      fc.Service.WorkDir,
		Env:          fc.BuildEnv(),
		PIDFile:      fc.Service.PIDFile,
		Bind:         fc.Service.Bind,
		GracePeriod:  fc.Service.GracePeriod,
		StopWait:     fc.Service.StopWait,
		LogTailLines: fc.Service.LogTailLines,
		Log:          fc.Log,
	}
}

// BuildEnv merges the configured environment layers into KEY=VALUE form.
// Returns nil when nothing is configured so the child inherits the
// supervisor's environment untouched.
func (fc *FileConfig) BuildEnv() []string {
	if !fc.UseOSEnv && len(fc.Env) == 0 && len(fc.Service.Env) == 0 {
		return nil
	}
	m := make(map[string]string)
	order := make([]string, 0)
	put := func(kv string) {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return
		}
		if _, seen := m[k]; !seen {
			order = append(order, k)
		}
		m[k] = v
	}
	if fc.UseOSEnv {
		for _, kv := range os.Environ() {
			put(kv)
		}
	}
	for _, kv := range fc.Env {
		put(kv)
	}
	for _, kv := range fc.Service.Env {
		put(kv)
	}
	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+m[k])
	}
	return out
}
