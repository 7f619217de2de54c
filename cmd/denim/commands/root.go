package commands

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"denim/internal/app"
)

var (
	configFile string
	v          *viper.Viper
	wire       *app.Wire
)

func Execute(ctx context.Context) error {
	return newRoot().ExecuteContext(ctx)
}

func newRoot() *cobra.Command {
	v = app.NewViper()
	root := &cobra.Command{
		Use:          "denim",
		Short:        "Deniable peer-to-peer encrypted chat",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(v, configFile)
			if err != nil {
				return err
			}
			wire, err = app.NewWire(cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if wire != nil {
				wire.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default <home>/denim.yaml)")
	pf.String("home", "", "data dir (default ~/.denim)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-file", "", "write logs to this file instead of stderr")
	_ = v.BindPFlag("home", pf.Lookup("home"))
	_ = v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = v.BindPFlag("log.file", pf.Lookup("log-file"))

	root.AddCommand(chatCmd(), historyCmd())
	return root
}
