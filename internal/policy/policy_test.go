package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSystemService(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"sshd", true},
		{"sshd-session", true},
		{"systemd-journald", true},
		{"NetworkManager", true},
		{"containerd-shim-runc-v2", true},
		{"cron", true},
		{"crond", true},
		{"networkmanager", false}, // case-sensitive
		{"myapp", false},
		{"firefox", false},
		{"", false},
		{"ssh", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSystemService(tt.name))
		})
	}
}

func TestIsCriticalExactMatchOnly(t *testing.T) {
	assert.True(t, IsCritical("init"))
	assert.True(t, IsCritical("systemd"))
	assert.True(t, IsCritical("kswapd0"))
	assert.True(t, IsCritical("kthreadd"))

	assert.False(t, IsCritical("init2"))
	assert.False(t, IsCritical("systemd-logind"))
	assert.False(t, IsCritical("Init"))
	assert.False(t, IsCritical(" init"))
	assert.False(t, IsCritical("kswapd1"))
}

func TestIsSystemCombinesBothTables(t *testing.T) {
	// critical only
	assert.True(t, IsSystem("kthreadd"))
	// service only
	assert.True(t, IsSystem("dockerd"))
	// both
	assert.True(t, IsSystem("systemd"))
	assert.False(t, IsSystem("bash"))
}

func TestNewExtraProtected(t *testing.T) {
	p := New([]string{"postgres", ""})
	assert.True(t, p.IsCritical("postgres"))
	assert.True(t, p.IsCritical("init"))
	assert.False(t, p.IsCritical(""))
	assert.False(t, Default().IsCritical("postgres"))
}

func TestTablesAreCopies(t *testing.T) {
	svc := SystemServices()
	svc[0] = "changed"
	assert.True(t, IsSystemService("systemd"))

	crit := CriticalProcesses()
	crit[0] = "changed"
	assert.True(t, IsCritical("init"))
}
