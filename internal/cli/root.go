// Package cli implements detailctl, an offline tool for checking detailing
// export archives against the table templates without a running server.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JonMunkholm/detailing/internal/logging"
)

// Version is set at build time.
var Version = "dev"

// app carries the settings shared by every command.
type app struct {
	v       *viper.Viper
	cfgFile string
}

// NewRootCommand builds the detailctl command tree.
//
// Settings come from flags, then DETAILCTL_* environment variables, then an
// optional YAML config file (--config, or ~/.detailctl/config.yaml).
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "detailctl",
		Short: "Inspect detailing export archives",
		Long: `detailctl unpacks detailing export archives and runs them through the
same table recognition and extraction the detailing service uses, so an
export can be checked before it is uploaded to a claim.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initConfig(); err != nil {
				return err
			}
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), a.v.GetString("log-level"), "text"))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.detailctl/config.yaml)")
	flags.StringP("output", "o", "table", "output format: table, json or yaml")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	_ = a.v.BindPFlag("output", flags.Lookup("output"))
	_ = a.v.BindPFlag("log-level", flags.Lookup("log-level"))

	root.AddCommand(
		newInspectCommand(a),
		newTemplatesCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs detailctl with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(home + "/.detailctl")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("config")
	}

	a.v.SetEnvPrefix("DETAILCTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); missing && a.cfgFile == "" {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func (a *app) format() (string, error) {
	f := strings.ToLower(a.v.GetString("output"))
	switch f {
	case "table", "json", "yaml":
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", f)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "detailctl %s\n", Version)
		},
	}
}

