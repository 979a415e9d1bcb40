package policy

import "slices"

// systemServices are matched by prefix so that instance suffixes
// (e.g. "sshd-session", "systemd-journald") are flagged as well.
var systemServices = []string{
	"systemd", "dbus-daemon", "dbus-broker", "NetworkManager",
	"containerd", "dockerd", "kubelet", "coredns",
	"sshd", "rsyslogd", "cron", "atd",
	"polkitd", "avahi-daemon", "cupsd", "bluetoothd",
	"firewalld", "iptables", "nftables",
	"systemd-resolved", "systemd-logind", "systemd-udevd",
}

// criticalProcesses are matched exactly. Only these block termination.
var criticalProcesses = []string{
	"init", "systemd", "kthreadd", "migration", "rcu_sched",
	"lru-add-drain", "watchdog", "cpuhp", "netns", "rcu_bh",
	"kasimer", "writeback", "kprobe", "khungtaskd", "oom_reaper",
	"ksmd", "khugepaged", "crypto", "kintegrityd", "kblockd",
	"edac-poller", "devfreq_wq", "watchdogd", "kswapd0",
}

// SystemServices returns a copy of the built-in system-service prefix list.
func SystemServices() []string { return slices.Clone(systemServices) }

// CriticalProcesses returns a copy of the built-in critical-process name list.
func CriticalProcesses() []string { return slices.Clone(criticalProcesses) }

// Policy classifies process names. The zero value is not usable; use Default or New.
// A Policy is immutable after construction and safe for concurrent use.
type Policy struct {
	prefixes []string
	critical map[string]struct{}
}

var defaultPolicy = New(nil)

// Default returns the policy built from the static tables only.
func Default() *Policy { return defaultPolicy }

// New builds a policy from the static tables plus extra exact-match protected names.
// Empty entries in extra are ignored.
func New(extraProtected []string) *Policy {
	p := &Policy{
		prefixes: SystemServices(),
		critical: make(map[string]struct{}, len(criticalProcesses)+len(extraProtected)),
	}
	for _, n := range criticalProcesses {
		p.critical[n] = struct{}{}
	}
	for _, n := range extraProtected {
		if n == "" {
			continue
		}
		p.critical[n] = struct{}{}
	}
	return p
}

// IsSystemService reports whether name starts with a known daemon name. Case-sensitive.
func (p *Policy) IsSystemService(name string) bool {
	for _, svc := range p.prefixes {
		if len(name) >= len(svc) && name[:len(svc)] == svc {
			return true
		}
	}
	return false
}

// IsCritical reports whether name exactly equals a protected process name.
func (p *Policy) IsCritical(name string) bool {
	_, ok := p.critical[name]
	return ok
}

// IsSystem is the informational flag shown to users: system service or critical.
func (p *Policy) IsSystem(name string) bool {
	return p.IsSystemService(name) || p.IsCritical(name)
}

// IsSystemService reports the default policy's system-service match.
func IsSystemService(name string) bool { return defaultPolicy.IsSystemService(name) }

// IsCritical reports the default policy's critical-process match.
func IsCritical(name string) bool { return defaultPolicy.IsCritical(name) }

// IsSystem reports the default policy's combined flag.
func IsSystem(name string) bool { return defaultPolicy.IsSystem(name) }
