package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"islandbot/internal/config"
	appLog "islandbot/internal/log"
)

const version = "0.1.0"

// globalFlags holds the persistent CLI flags shared by every command.
type globalFlags struct {
	configPath string
	envFile    string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	run := newRunCmd(g)

	root := &cobra.Command{
		Use:          "islandbot",
		Short:        "Lost Ark adventure island notifier for Discord",
		Version:      version,
		SilenceUsage: true,
		// Without a subcommand the bot runs.
		RunE: run.RunE,
	}
	root.Flags().AddFlagSet(run.Flags())

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "config.yaml", "Path to config file (created with defaults if missing)")
	pf.StringVar(&g.envFile, "env-file", ".env", "Optional dotenv file loaded before the environment overrides")
	pf.BoolVar(&g.debug, "debug", false, "Enable debug logging")

	root.AddCommand(run, newShowCmd(g))
	return root
}

// loadConfig loads the dotenv file, the YAML config and the environment
// overrides, then configures logging and validates the result.
func loadConfig(g *globalFlags) (*config.Config, error) {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", g.envFile, err)
		}
	}

	cfg, err := config.Load(g.configPath)
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		// 기본 설정 파일 생성 실패는 치명적이지 않다.
		appLog.Warn("could not write default config", "config_path", g.configPath, "err", err)
	}
	cfg.ApplyEnv(os.LookupEnv)

	if g.debug {
		cfg.Log.Level = "debug"
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.Log.Level))
	if err := appLog.OpenFile(cfg.Log.File); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
