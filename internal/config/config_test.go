package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostsFromEnvStopsAtGap(t *testing.T) {
	t.Setenv("HOSTNAME_1", "a.example.com")
	t.Setenv("USERNAME_1", "root")
	t.Setenv("PASSWORD_1", "secret")
	t.Setenv("SCRIPT_PATH_1", "/opt/app/run.sh")
	t.Setenv("HOSTNAME_2", "b.example.com")
	t.Setenv("USERNAME_2", "admin")
	// no HOSTNAME_3, but a 4 beyond the gap must be ignored
	t.Setenv("HOSTNAME_4", "d.example.com")

	hosts := HostsFromEnv(0)
	require.Len(t, hosts, 2)
	assert.Equal(t, 1, hosts[0].Index)
	assert.Equal(t, "a.example.com", hosts[0].Hostname)
	assert.Equal(t, "root", hosts[0].Username)
	assert.Equal(t, "secret", hosts[0].Password)
	assert.Equal(t, "/opt/app/run.sh", hosts[0].ScriptPath)
	assert.Equal(t, 2, hosts[1].Index)
	assert.Equal(t, "b.example.com", hosts[1].Hostname)
}

func TestHostsFromEnvOffset(t *testing.T) {
	t.Setenv("HOSTNAME_1", "a.example.com")
	hosts := HostsFromEnv(3)
	require.Len(t, hosts, 1)
	assert.Equal(t, 4, hosts[0].Index)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleetward.toml")
	content := `
history_dsn = "sqlite://:memory:"

[monitor]
retries = 5
retry_delay = "2s"
interval = "30m"

[server]
listen = ":9090"
base_path = "/fleet"

[log]
file = "/var/log/fleetward.log"
level = "debug"

[[hosts]]
hostname = "a.example.com"
username = "root"
password = "secret"
script_path = "/opt/app/run.sh"

[[hosts]]
hostname = "b.example.com"
port = 2222
username = "admin"
password = "hunter2"
script_path = "/srv/job.sh"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Monitor.Retries)
	assert.Equal(t, 2*time.Second, cfg.Monitor.RetryDelay)
	assert.Equal(t, 30*time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, DefaultTick, cfg.Monitor.Tick)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "/fleet", cfg.Server.BasePath)
	assert.Equal(t, "sqlite://:memory:", cfg.HistoryDSN)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.Len(t, cfg.Hosts, 2)
	assert.Equal(t, 1, cfg.Hosts[0].Index)
	assert.Equal(t, 22, cfg.Hosts[0].Port)
	assert.Equal(t, "a.example.com:22", cfg.Hosts[0].Addr())
	assert.Equal(t, 2, cfg.Hosts[1].Index)
	assert.Equal(t, "b.example.com:2222", cfg.Hosts[1].Addr())

	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleetward.toml")
	content := `
[[hosts]]
hostname = "file.example.com"
username = "root"
script_path = "/opt/app/run.sh"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("HOSTNAME_1", "env.example.com")
	t.Setenv("USERNAME_1", "admin")
	t.Setenv("SCRIPT_PATH_1", "/srv/job.sh")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Hosts, 2)
	assert.Equal(t, "file.example.com", cfg.Hosts[0].Hostname)
	assert.Equal(t, "env.example.com", cfg.Hosts[1].Hostname)
	assert.Equal(t, 2, cfg.Hosts[1].Index)
}

func TestLoadEmptyPathUsesEnvOnly(t *testing.T) {
	t.Setenv("HOSTNAME_1", "a.example.com")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Len(t, cfg.Hosts, 1)
	assert.Equal(t, DefaultRetries, cfg.Monitor.Retries)
	assert.Equal(t, DefaultRetryDelay, cfg.Monitor.RetryDelay)
	assert.Equal(t, DefaultInterval, cfg.Monitor.Interval)
	assert.Equal(t, DefaultCommandTimeout, cfg.Monitor.CommandTimeout)
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		host Host
	}{
		{"missing hostname", Host{Index: 1, Username: "root", ScriptPath: "/x.sh"}},
		{"missing username", Host{Index: 1, Hostname: "a", ScriptPath: "/x.sh"}},
		{"missing script", Host{Index: 1, Hostname: "a", Username: "root"}},
		{"relative script", Host{Index: 1, Hostname: "a", Username: "root", ScriptPath: "x.sh"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Hosts: []Host{tc.host}}
			assert.Error(t, cfg.Validate())
		})
	}
}
