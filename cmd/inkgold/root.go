// cmd/inkgold/root.go
package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every flag across the subcommands. Each flag can also be
// set through the environment as INKGOLD_<FLAG> with dashes replaced by
// underscores.
type Config struct {
	relayURL string
	logLevel string

	// relay
	listen string
	redis  bool

	// host
	room      string
	countdown int

	// player
	slot        int
	imeEndpoint string
	imeLanguage string
}

func (c *Config) logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.logLevel, err)
	}
	l := logrus.New()
	l.SetLevel(level)
	return l, nil
}

func newRootCmd() *cobra.Command {
	cfg := &Config{}

	v := viper.New()
	v.SetEnvPrefix("INKGOLD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "inkgold",
		Short:         "A three-player handwriting quiz over a relay-brokered room.",
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pfs := root.PersistentFlags()
	pfs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	pfs.StringVar(&cfg.relayURL, "relay-url", "ws://localhost:8080", "relay base URL (env: INKGOLD_RELAY_URL)")
	pfs.StringVar(&cfg.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error (env: INKGOLD_LOG_LEVEL)")

	root.AddCommand(
		newRelayCmd(cfg),
		newHostCmd(cfg),
		newAdminCmd(cfg),
		newPlayerCmd(cfg),
	)

	root.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		bindFlags(v, pfs)
		bindFlags(v, cmd.Flags())
	}

	root.CompletionOptions.HiddenDefaultCmd = true
	root.SetHelpCommand(&cobra.Command{Hidden: true})
	root.SetVersionTemplate("inkgold v{{.Version}}\n")

	return root
}

// resolveRoom picks the room code from the positional argument, falling
// back to --room / INKGOLD_ROOM (the saved-room convenience).
func resolveRoom(cfg *Config, args []string) (string, error) {
	if len(args) == 1 {
		return strings.ToUpper(args[0]), nil
	}
	if cfg.room != "" {
		return strings.ToUpper(cfg.room), nil
	}
	return "", errors.New("no room code given: pass it as an argument or set --room / INKGOLD_ROOM")
}

// bindFlags lets the environment fill any flag the command line left at
// its default.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
