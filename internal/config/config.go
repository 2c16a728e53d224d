package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/tlvhello/internal/server"
)

// EnvServerConfig names an optional TOML file for tlvserver.
const EnvServerConfig = "TLVHELLO_SERVER_CONFIG"

// serverFile is the tlvserver config.toml key mapping.
type serverFile struct {
	ListenAddr      string   `toml:"listen_addr"`
	MaxClients      int      `toml:"max_clients"`
	RespondDelay    string   `toml:"respond_delay"`
	WriteTimeout    string   `toml:"write_timeout"`
	BackoffInitial  string   `toml:"accept_backoff_initial"`
	BackoffMax      string   `toml:"accept_backoff_max"`
	AdminListenAddr string   `toml:"admin_listen_addr"`
	CorsOrigins     []string `toml:"cors_origins"`
}

// LoadServerFromEnv loads the file named by EnvServerConfig, or defaults when unset.
func LoadServerFromEnv() (server.Config, string, error) {
	path := strings.TrimSpace(os.Getenv(EnvServerConfig))
	if path == "" {
		return server.DefaultConfig(), "", nil
	}
	cfg, err := LoadServer(path)
	return cfg, path, err
}

// LoadServer overlays keys present in path onto server.DefaultConfig.
func LoadServer(path string) (server.Config, error) {
	cfg := server.DefaultConfig()

	var raw serverFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return server.Config{}, fmt.Errorf("load server config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return server.Config{}, fmt.Errorf("load server config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("max_clients") {
		cfg.MaxClients = raw.MaxClients
	}
	if meta.IsDefined("respond_delay") {
		d, err := parseDuration("respond_delay", raw.RespondDelay)
		if err != nil {
			return server.Config{}, err
		}
		cfg.Session.RespondDelay = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := parseDuration("write_timeout", raw.WriteTimeout)
		if err != nil {
			return server.Config{}, err
		}
		cfg.Session.WriteTimeout = d
	}
	if meta.IsDefined("accept_backoff_initial") {
		d, err := parseDuration("accept_backoff_initial", raw.BackoffInitial)
		if err != nil {
			return server.Config{}, err
		}
		cfg.AcceptBackoff.InitialDelay = d
	}
	if meta.IsDefined("accept_backoff_max") {
		d, err := parseDuration("accept_backoff_max", raw.BackoffMax)
		if err != nil {
			return server.Config{}, err
		}
		cfg.AcceptBackoff.MaxDelay = d
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}

	if err := cfg.Validate(); err != nil {
		return server.Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("parse %s: negative duration %s", key, d)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
