package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"os"
	"path/filepath"
	"time"
)

// ServerConfig holds configuration for the rendezvous server binary.
type ServerConfig struct {
	Addr       string
	LogLevel   string
	LogFormat  string
	SessionTTL time.Duration
}

// ClientConfig holds configuration shared by the tx and rx commands.
type ClientConfig struct {
	ServerURL   string
	LogLevel    string
	LogFormat   string
	PeerID      string
	Code        string
	DownloadDir string        // rx only: where received files land
	Timeout     time.Duration // rendezvous and connect deadline
}

// ParseServerConfig parses server configuration from flags and
// environment variables. Flags take precedence over environment.
// Defaults: addr=":8080", logLevel="info", sessionTTL=10m
func ParseServerConfig() ServerConfig {
	return parseServerConfigWithFlagSet(flag.CommandLine, os.Args[1:])
}

func parseServerConfigWithFlagSet(fs *flag.FlagSet, args []string) ServerConfig {
	cfg := ServerConfig{
		Addr:       ":8080",
		LogLevel:   "info",
		LogFormat:  "text",
		SessionTTL: 10 * time.Minute,
	}

	if addr := os.Getenv("SEAWIRE_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if level := os.Getenv("SEAWIRE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if format := os.Getenv("SEAWIRE_LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text, json)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "idle session lifetime")
	fs.Parse(args)

	return cfg
}

// ParseClientConfig parses client configuration from flags and
// environment variables. Flags take precedence over environment.
// Remaining positional arguments become the file list for tx.
// Defaults: serverURL="http://localhost:8080", downloadDir=~/Downloads
func ParseClientConfig(args []string) (ClientConfig, []string) {
	fs := flag.NewFlagSet("swire", flag.ExitOnError)
	return parseClientConfigWithFlagSet(fs, args)
}

func parseClientConfigWithFlagSet(fs *flag.FlagSet, args []string) (ClientConfig, []string) {
	cfg := ClientConfig{
		ServerURL:   "http://localhost:8080",
		LogLevel:    "info",
		LogFormat:   "text",
		PeerID:      generatePeerID(),
		DownloadDir: defaultDownloadDir(),
		Timeout:     2 * time.Minute,
	}

	if url := os.Getenv("SEAWIRE_SERVER_URL"); url != "" {
		cfg.ServerURL = url
	}
	if level := os.Getenv("SEAWIRE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if format := os.Getenv("SEAWIRE_LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}
	if code := os.Getenv("SEAWIRE_CODE"); code != "" {
		cfg.Code = code
	}

	fs.StringVar(&cfg.ServerURL, "server-url", cfg.ServerURL, "rendezvous server URL")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text, json)")
	fs.StringVar(&cfg.Code, "code", cfg.Code, "session join code")
	fs.StringVar(&cfg.DownloadDir, "out", cfg.DownloadDir, "destination directory for received files")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "rendezvous and connect deadline")
	fs.Parse(args)

	return cfg, fs.Args()
}

// defaultDownloadDir is the user's Downloads directory, falling back to
// the working directory when the home directory cannot be resolved.
func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

// generatePeerID generates a random 10-character hex string for peer
// identification on the rendezvous server.
func generatePeerID() string {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "0000000000"
	}
	return hex.EncodeToString(b)
}
