package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"conclave/internal/app"
	"conclave/internal/domain"
)

var (
	cfgv   *viper.Viper
	appCtx *app.Wire
)

// Execute runs the CLI with os.Args.
func Execute() error {
	return execute(newRootCmd())
}

// execute runs root and always releases the dependency graph, including
// after a failed subcommand.
func execute(root *cobra.Command) error {
	err := root.Execute()
	if cerr := closeApp(); err == nil {
		err = cerr
	}
	return err
}

func closeApp() error {
	if appCtx == nil {
		return nil
	}
	err := appCtx.Close()
	_ = appCtx.Log.Sync()
	appCtx = nil
	return err
}

func newRootCmd() *cobra.Command {
	cfgv = viper.New()
	appCtx = nil

	root := &cobra.Command{
		Use:          "conclave",
		Short:        "Encrypted group chat trust and key tool",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(cfgv)
			if err != nil {
				return err
			}
			log, err := app.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			appCtx, err = app.NewWire(cfg, log, app.Engines{})
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.String("home", "", "config dir (default ~/.conclave)")
	flags.StringP("passphrase", "p", "", "passphrase sealing private keys")
	flags.String("relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	flags.StringP("account", "a", "", "local account id (default \"default\")")
	flags.String("store", "", "property backend: file or sqlite")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	for key, flag := range map[string]string{
		"home":       "home",
		"passphrase": "passphrase",
		"relay":      "relay",
		"account":    "account",
		"store":      "store",
		"log_level":  "log-level",
	} {
		_ = cfgv.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		keygenCmd(),
		fingerprintCmd(),
		migrateCmd(),
		trustCmd(),
		sendCmd(),
		recvCmd(),
	)
	return root
}

func parseVariant(s string) (domain.KeyVariant, error) {
	v := domain.KeyVariant(s)
	if !v.Valid() {
		return "", fmt.Errorf("variant must be %q or %q, got %q", domain.KeyVariantDirect, domain.KeyVariantGroup, s)
	}
	return v, nil
}
