package config

import (
	"github.com/danmuck/tlvhello/internal/server"
	gotoml "github.com/pelletier/go-toml/v2"
)

// Render encodes the effective server config with the same keys LoadServer reads.
func Render(cfg server.Config) ([]byte, error) {
	file := serverFile{
		ListenAddr:      cfg.ListenAddr,
		MaxClients:      cfg.MaxClients,
		RespondDelay:    cfg.Session.RespondDelay.String(),
		WriteTimeout:    cfg.Session.WriteTimeout.String(),
		BackoffInitial:  cfg.AcceptBackoff.InitialDelay.String(),
		BackoffMax:      cfg.AcceptBackoff.MaxDelay.String(),
		AdminListenAddr: cfg.AdminListenAddr,
		CorsOrigins:     cfg.CorsOrigins,
	}
	if file.CorsOrigins == nil {
		file.CorsOrigins = []string{}
	}
	return gotoml.Marshal(file)
}
