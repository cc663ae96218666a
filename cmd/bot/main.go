// cmd/bot/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/bot"
	"github.com/rovshanmuradov/solana-autotrader/internal/config"
	"github.com/rovshanmuradov/solana-autotrader/internal/export"
	"github.com/rovshanmuradov/solana-autotrader/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (yaml/json/toml); env SOLANA_BOT_* is always applied")
	exportFormat := flag.String("export", "", "export sold positions history (csv|json) and exit")
	exportDir := flag.String("export-dir", "reports", "output directory for -export")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	forwarder := logger.NewForwarder()
	log, err := logger.New(logCfg, forwarder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	runner := bot.NewRunner(cfg, log, forwarder)

	if *exportFormat != "" {
		path, err := runner.ExportHistory(context.Background(), export.Options{
			Format:    export.Format(*exportFormat),
			OutputDir: *exportDir,
		})
		if err != nil {
			log.Error("Export failed", zap.Error(err))
			_ = logger.Sync(log)
			os.Exit(1)
		}
		fmt.Println(path)
		return
	}

	if err := runner.Run(context.Background()); err != nil {
		log.Error("Bot execution error", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
}
