package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseServerConfig_Defaults(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, []string{})

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
}

func TestParseServerConfig_Flags(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, []string{
		"-addr", ":9090", "-log-level", "debug", "-session-ttl", "1h",
	})

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
}

func TestParseServerConfig_FlagsOverrideEnv(t *testing.T) {
	os.Clearenv()
	t.Setenv("SEAWIRE_ADDR", ":7070")
	t.Setenv("SEAWIRE_LOG_LEVEL", "warn")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, []string{"-addr", ":9090"})

	assert.Equal(t, ":9090", cfg.Addr, "flag wins over env")
	assert.Equal(t, "warn", cfg.LogLevel, "env fills in what flags omit")
}

func TestParseClientConfig_Defaults(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, rest := parseClientConfigWithFlagSet(fs, []string{})

	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Code)
	assert.Len(t, cfg.PeerID, 10)
	assert.NotEmpty(t, cfg.DownloadDir)
	assert.Empty(t, rest)
}

func TestParseClientConfig_FlagsAndPositionals(t *testing.T) {
	os.Clearenv()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, rest := parseClientConfigWithFlagSet(fs, []string{
		"-server-url", "http://relay.example.com:9090",
		"-code", "7-guitar-sardine",
		"-out", "/tmp/inbox",
		"a.bin", "b.bin",
	})

	assert.Equal(t, "http://relay.example.com:9090", cfg.ServerURL)
	assert.Equal(t, "7-guitar-sardine", cfg.Code)
	assert.Equal(t, "/tmp/inbox", cfg.DownloadDir)
	assert.Equal(t, []string{"a.bin", "b.bin"}, rest)
}

func TestParseClientConfig_EnvFallback(t *testing.T) {
	os.Clearenv()
	t.Setenv("SEAWIRE_SERVER_URL", "http://env.example.com:7070")
	t.Setenv("SEAWIRE_CODE", "3-lobster-anchor")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, _ := parseClientConfigWithFlagSet(fs, []string{})

	assert.Equal(t, "http://env.example.com:7070", cfg.ServerURL)
	assert.Equal(t, "3-lobster-anchor", cfg.Code)
}

func TestParseClientConfig_FlagsOverrideEnv(t *testing.T) {
	os.Clearenv()
	t.Setenv("SEAWIRE_CODE", "3-lobster-anchor")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, _ := parseClientConfigWithFlagSet(fs, []string{"-code", "9-piano-walrus"})

	assert.Equal(t, "9-piano-walrus", cfg.Code)
}
