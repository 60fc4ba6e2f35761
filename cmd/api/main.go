package main

import (
	"log"

	"wattsmybill-backend/internal/bootstrap"
	"wattsmybill-backend/internal/shared/config"
	"wattsmybill-backend/internal/shared/server"
	"wattsmybill-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	if app.DB != nil {
		defer app.DB.Close()
	}

	addr := server.Addr(cfg.Port)
	telemetry.Info("server.start", map[string]any{
		"addr":          addr,
		"env":           cfg.Env,
		"object_store":  cfg.ObjectStoreType,
		"agent_runtime": cfg.AgentRuntimeURL != "",
		"database":      app.DB != nil,
	})

	if err := app.Router.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
