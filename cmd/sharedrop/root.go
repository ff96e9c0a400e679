package main

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stefando/shareDrop/internal/client"
	"github.com/stefando/shareDrop/internal/config"
	"github.com/stefando/shareDrop/internal/logging"
)

// cli holds what every subcommand needs once flags are parsed
type cli struct {
	v   *viper.Viper
	cfg *config.ClientConfig
	log *logrus.Logger
	api client.API
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "sharedrop",
		Short:         "Share files through presigned storage URLs",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}

	flags := root.PersistentFlags()
	flags.String("server", "http://localhost:3000", "broker base URL")
	flags.String("share-base", "", "base URL for share links (defaults to --server)")
	flags.Int("concurrency", config.DefaultConcurrency, "parts uploaded in parallel")
	flags.Int64("threshold", config.DefaultMultipartThreshold, "file size in bytes at which multipart is used")
	flags.String("log-level", "warn", "log level")
	_ = c.v.BindPFlags(flags)

	c.v.SetEnvPrefix(config.ClientEnvPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root.AddCommand(newUploadCmd(c), newDownloadCmd(c))
	return root
}

func (c *cli) load() error {
	cfg, err := config.LoadClient(c.v)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.log = logging.New("development", cfg.LogLevel)
	c.api = client.NewHTTPAPI(cfg.ServerURL, nil)
	return nil
}
