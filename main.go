package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Roblox/rojo/internal/config"
	"github.com/Roblox/rojo/internal/logger"
	"github.com/Roblox/rojo/internal/project"
	"github.com/Roblox/rojo/internal/session"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	projectPath := flag.String("project", ".", "Path to a *.project.json file or a directory containing one")
	port := flag.Int("port", 0, "Override the configured server port (0 keeps the configured value)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("loading configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	level, format, output, file := cfg.LoggerConfig()
	if err := logger.Initialize(logger.Config{
		Level:  level,
		Format: format,
		Output: output,
		File: logger.FileConfig{
			Path:       file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   file.Compress,
		},
	}); err != nil {
		logger.Fatalf("initializing logger: %v", err)
	}

	proj, err := project.Load(*projectPath)
	if err != nil {
		logger.Fatalf("loading project: %v", err)
	}
	if proj.ServePort != nil {
		cfg.Server.Port = int(*proj.ServePort)
	}

	logger.WithFields(map[string]interface{}{
		"project": proj.Name,
		"address": cfg.Server.Host,
		"port":    cfg.Server.Port,
	}).Info("starting rojo session")

	sess, err := session.New(cfg, proj)
	if err != nil {
		logger.Fatalf("constructing session: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sess.Start(ctx); err != nil {
		logger.Fatalf("starting session: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	if err := sess.Stop(); err != nil {
		logger.Errorf("error during shutdown: %v", err)
	}
}
