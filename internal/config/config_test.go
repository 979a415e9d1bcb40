package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/prokill/internal/process"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, DefaultRefreshInterval, c.RefreshInterval)
	assert.Equal(t, DefaultCPUThreshold, c.CPUThreshold)
	assert.Equal(t, DefaultLimit, c.Limit)
	assert.False(t, c.ShowAll)
	assert.Equal(t, process.SortCPU, c.SortKey())
	assert.Equal(t, DefaultBasePath, c.Server.BasePath)
	assert.Equal(t, time.Hour, c.Server.TokenTTL)
	assert.Equal(t, "info", c.Log.Slog.Level)
	assert.Equal(t, 10, c.Log.File.MaxSizeMB)
	assert.NoError(t, c.Validate())
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "prokill.toml", `
refresh_interval = "5s"
cpu_threshold = 75.5
show_all = true
limit = 20
sort = "memory"

[policy]
extra_protected = ["postgres", "nginx"]

[log]
level = "debug"
format = "json"
dir = "/var/log/prokill"
max_backups = 5

[server]
listen = ":9000"
base_path = "/v1"
jwt_secret = "s3cret"
token_ttl = "30m"

[metrics]
enabled = true
top = 5

[history]
enabled = true
dsn = "sqlite://:memory:"
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, c.RefreshInterval)
	assert.Equal(t, 75.5, c.CPUThreshold)
	assert.True(t, c.ShowAll)
	assert.Equal(t, 20, c.Limit)
	assert.Equal(t, process.SortMemory, c.SortKey())
	assert.Equal(t, []string{"postgres", "nginx"}, c.Policy.ExtraProtected)
	assert.Equal(t, "debug", c.Log.Slog.Level)
	assert.Equal(t, "json", c.Log.Slog.Format)
	assert.Equal(t, "/var/log/prokill", c.Log.File.Dir)
	assert.Equal(t, 5, c.Log.File.MaxBackups)
	assert.Equal(t, logDefaultsMaxAge(), c.Log.File.MaxAgeDays)
	assert.Equal(t, ":9000", c.Server.Listen)
	assert.Equal(t, "/v1", c.Server.BasePath)
	assert.Equal(t, "s3cret", c.Server.JWTSecret)
	assert.Equal(t, 30*time.Minute, c.Server.TokenTTL)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, 5, c.Metrics.Top)
	assert.Equal(t, DefaultMetricsListen, c.Metrics.Listen)
	assert.True(t, c.History.Enabled)
	assert.Equal(t, "sqlite://:memory:", c.History.DSN)
}

func logDefaultsMaxAge() int { return Default().Log.File.MaxAgeDays }

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "prokill.toml", `
refresh_interval = "5s"
[server]
listen = ":9000"
`)
	t.Setenv("PROKILL_REFRESH_INTERVAL", "250ms")
	t.Setenv("PROKILL_SERVER_LISTEN", ":7000")
	t.Setenv("PROKILL_CPU_THRESHOLD", "12")
	t.Setenv("PROKILL_POLICY_EXTRA_PROTECTED", "a, b")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, c.RefreshInterval)
	assert.Equal(t, ":7000", c.Server.Listen)
	assert.Equal(t, 12.0, c.CPUThreshold)
	assert.Equal(t, []string{"a", "b"}, c.Policy.ExtraProtected)
}

func TestEnvFileLoaded(t *testing.T) {
	envPath := writeFile(t, "test.env", "PROKILL_LIMIT=3\nPROKILL_SORT=name\n")
	t.Setenv("PROKILL_LIMIT", "")
	os.Unsetenv("PROKILL_LIMIT")
	t.Cleanup(func() { os.Unsetenv("PROKILL_SORT") })

	c, err := Load("", envPath)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Limit)
	assert.Equal(t, process.SortName, c.SortKey())
}

func TestEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	envPath := writeFile(t, "test.env", "PROKILL_LIMIT=3\n")
	t.Setenv("PROKILL_LIMIT", "7")

	c, err := Load("", envPath)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Limit)
}

func TestMissingEnvFile(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero refresh", func(c *Config) { c.RefreshInterval = 0 }},
		{"negative threshold", func(c *Config) { c.CPUThreshold = -1 }},
		{"negative limit", func(c *Config) { c.Limit = -2 }},
		{"bad sort", func(c *Config) { c.Sort = "threads" }},
		{"negative ttl", func(c *Config) { c.Server.TokenTTL = -time.Second }},
		{"history without dsn", func(c *Config) { c.History.Enabled = true }},
		{"tls without certificates", func(c *Config) { c.Server.TLS.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, "bad.toml", `sort = "bogus"`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestListFilter(t *testing.T) {
	c := Default()
	f := c.ListFilter(false)
	assert.Equal(t, process.Filter{Limit: DefaultLimit}, f)

	f = c.ListFilter(true)
	assert.Equal(t, DefaultCPUThreshold, f.Threshold)

	c.ShowAll = true
	assert.Equal(t, 0, c.ListFilter(false).Limit)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a,b", " c ", ""}))
	assert.Nil(t, splitList(nil))
}

func TestLoadTLS(t *testing.T) {
	path := writeFile(t, "tls.toml", `
[server.tls]
enabled = true
dir = "/var/lib/prokill/tls"
auto_generate = true
dns_names = ["localhost", "prokill.local"]
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.True(t, c.Server.TLS.Enabled)
	assert.True(t, c.Server.TLS.AutoGenerate)
	assert.Equal(t, "/var/lib/prokill/tls", c.Server.TLS.Dir)
	assert.Equal(t, []string{"localhost", "prokill.local"}, c.Server.TLS.DNSNames)
	assert.Equal(t, "1.2", c.Server.TLS.MinVersion)
}

func TestLoadExpandsVariables(t *testing.T) {
	envPath := writeFile(t, "secrets.env", "PROKILL_TEST_PGPASS=s3cret\n")
	t.Cleanup(func() { os.Unsetenv("PROKILL_TEST_PGPASS") })
	t.Setenv("PROKILL_TEST_JWT", "jwt-from-env")
	path := writeFile(t, "prokill.toml", `
[server]
jwt_secret = "${PROKILL_TEST_JWT}"
[history]
enabled = true
dsn = "postgres://audit:${PROKILL_TEST_PGPASS}@db:5432/prokill?sslmode=disable"
`)

	c, err := Load(path, envPath)
	require.NoError(t, err)
	assert.Equal(t, "jwt-from-env", c.Server.JWTSecret)
	assert.Equal(t, "postgres://audit:s3cret@db:5432/prokill?sslmode=disable", c.History.DSN)
}
