package main

import (
	"context"
	"os"
	"strings"

	"koo/internal/config"
	"koo/internal/initial"
	"koo/pkg/zlog"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		zlog.Error("command failed", zap.Error(err))
		_ = zlog.Sync()
		os.Exit(1)
	}
	_ = zlog.Sync()
}

// cliOptions 所有子命令共享的参数
type cliOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "koo",
		Short:         "koo knowledge base: ingest sources and answer questions from them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config toml (default $KOO_CONFIG or "+config.DefaultConfigPath+")")

	root.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newAskCmd(opts),
		newIngestCmd(opts),
		newInitCmd(opts),
		newQueryLogCmd(opts),
		newDocumentCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

func (o *cliOptions) loadConfig() (*config.Config, error) {
	path := strings.TrimSpace(o.configPath)
	if path == "" {
		path = os.Getenv("KOO_CONFIG")
	}
	if path == "" {
		path = config.DefaultConfigPath
	}
	conf, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	config.SetConfig(conf)
	if err := zlog.Init(zlog.Options{LogPath: conf.LogConfig.LogPath, Level: conf.LogConfig.Level}); err != nil {
		return nil, err
	}
	return conf, nil
}

func (o *cliOptions) newApp(ctx context.Context, opts initial.Options) (*initial.App, error) {
	conf, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return initial.NewApp(ctx, conf, opts)
}
