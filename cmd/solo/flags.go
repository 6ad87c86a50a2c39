package main

import "time"

// GlobalFlags holds persistent flags shared by all subcommands.
type GlobalFlags struct {
	ConfigPath string
}

// ServiceFlags override (or, without a config file, fully define) the
// supervised service.
type ServiceFlags struct {
	Name        string
	Command     string
	WorkDir     string
	PIDFile     string
	Bind        string
	LogDir      string
	GracePeriod time.Duration
	StopWait    time.Duration
	TailLines   int
}

// StatusFlags holds status output options.
type StatusFlags struct {
	JSON bool
}
