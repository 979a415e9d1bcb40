package main

import "time"

// RemoteFlags select the HTTP API instead of the local process table.
type RemoteFlags struct {
	APIUrl     string
	APITimeout time.Duration
	Token      string
	CACert     string
	Insecure   bool
}

// ListFlags Flag structs to decouple cobra from logic for testing.
type ListFlags struct {
	Sort      string
	All       bool
	Limit     int
	High      bool
	Threshold float64
	Query     string
	JSON      bool
	Sample    time.Duration
	Remote    RemoteFlags
}

type ShowFlags struct {
	PID    uint32
	JSON   bool
	Remote RemoteFlags
}

type CheckFlags struct {
	PID    uint32
	Remote RemoteFlags
}

type KillFlags struct {
	PID     uint32
	PIDFile string
	Force   bool
	Yes     bool
	Wait    time.Duration
	Remote  RemoteFlags
}

type TopFlags struct {
	Sort string
	All  bool
}

type ServeFlags struct {
	Listen    string
	Daemonize bool
	PIDFile   string
	LogFile   string
}

type TokenFlags struct {
	Subject string
	Roles   []string
	TTL     time.Duration
	JSON    bool
}

type LoginFlags struct {
	APIUrl string
	Token  string
}

type HistoryFlags struct {
	Limit  int
	JSON   bool
	Remote RemoteFlags
}
