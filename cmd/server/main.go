package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/TheBackpacker1/AHDProject/internal/app"
	"github.com/TheBackpacker1/AHDProject/internal/config"
	dbpkg "github.com/TheBackpacker1/AHDProject/internal/db"
	"github.com/TheBackpacker1/AHDProject/internal/logging"
)

func main() {
	kingpinApp := kingpin.New("server", "Users and sheep API server")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	envFile := kingpinApp.Flag("env-file", "Dotenv file loaded before reading the environment").Default(".env").String()
	host := kingpinApp.Flag("host", "Interface to listen on (all when empty)").String()
	port := kingpinApp.Flag("port", "HTTP port, overrides PORT").Int()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	if err := config.LoadDotEnv(*envFile); err != nil {
		panic(fmt.Sprintf("failed to load env file: %v", err))
	}

	overrides := &config.CLIOverrides{ConfigFile: *configFile}
	if *host != "" {
		overrides.Host = host
	}
	if *port != 0 {
		overrides.Port = port
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := app.New(cfg, logger, func(ctx context.Context) (dbpkg.Store, error) {
		return dbpkg.Connect(ctx, cfg.Database, logger)
	})
	if err := server.Run(ctx); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
