// cmd/twiliot/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/signalnine/twiliot/internal/config"
	"github.com/signalnine/twiliot/internal/logging"
)

var (
	configPath   string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "twiliot",
	Short: "Alert by SMS when tracked assets stop reporting",
	Long: `twiliot polls the asset platform for the last time each asset was seen,
and sends a Twilio SMS listing the assets that have been offline too long.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch outputFormat {
		case "table", "json", "yaml":
			return nil
		}
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", outputFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "config file, looked up in the working directory then $HOME")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or yaml")
}

// env is what every command needs once the config file is read
type env struct {
	cfg    *config.Config
	log    zerolog.Logger
	closer io.Closer
}

func setup() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("config", cfg.Path).Msg("configuration loaded")

	return &env{cfg: cfg, log: log, closer: closer}, nil
}

func (e *env) Close() {
	e.closer.Close()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
