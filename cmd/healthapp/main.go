package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	daemon "github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"

	"github.com/xscopehub/healthapp/internal/config"
	"github.com/xscopehub/healthapp/internal/server"
	logpkg "github.com/xscopehub/healthapp/pkg/log"
	"github.com/xscopehub/healthapp/pkg/telemetry"
)

var version = "dev"

var (
	daemonMode bool
	configPath string
	listenAddr string
	dataPath   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "healthapp",
		Short:        "Serves the health risk dataset and its D3 chart",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if daemonMode {
				cntxt := &daemon.Context{
					PidFileName: "healthapp.pid",
					PidFilePerm: 0644,
				}
				child, err := cntxt.Reborn()
				if err != nil {
					return err
				}
				if child != nil {
					return nil
				}
				defer cntxt.Release()
			}
			return run(cmd.Context(), cfg)
		},
	}
	rootCmd.PersistentFlags().BoolVar(&daemonMode, "daemon", false, "run in background")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "override server.listen")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "override data.path")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return rootCmd
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("listen") {
		cfg.Server.Listen = listenAddr
	}
	if cmd.Flags().Changed("data") {
		cfg.Data.Path = dataPath
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, cfg.Telemetry.Service, cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Printf("telemetry shutdown: %v", err)
			}
		}()
	}

	logger := logpkg.New(cfg.Telemetry.Service, logpkg.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	return server.New(cfg, logger).Run(ctx)
}
