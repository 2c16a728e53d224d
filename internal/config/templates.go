package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		return serverTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serverTemplate = `listen_addr = "0.0.0.0:5555"
max_clients = 14
respond_delay = "0s"
write_timeout = "5s"
accept_backoff_initial = "10ms"
accept_backoff_max = "1s"
# admin_listen_addr = "127.0.0.1:9555"
cors_origins = ["http://localhost:3000"]
`
