package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sandeepkv93/todoflow/internal/config"
)

// globalFlags are the persistent flags that overlay file and environment
// configuration.
type globalFlags struct {
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string
	publisher  string
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&g.configPath, "config", "c", "", "YAML config file")
	fs.StringVar(&g.dbPath, "db", "", "SQLite database path")
	fs.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&g.logFormat, "log-format", "", "log format (text, json)")
	fs.StringVar(&g.publisher, "publisher", "", "event sink (dapr, log, none)")
}

// load layers defaults, the config file, the environment and finally any
// flag the user set explicitly.
func (g *globalFlags) load(fs *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.LoadFile(cfg, g.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	cfg = config.FromEnv(cfg)
	if fs.Changed("db") {
		cfg.DBPath = g.dbPath
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = g.logFormat
	}
	if fs.Changed("publisher") {
		cfg.Publisher = g.publisher
	}
	return cfg, cfg.Validate()
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	var cfg config.Config

	root := &cobra.Command{
		Use:           "todoflow",
		Short:         "Todo tracker with recurring tasks and reminders",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := flags.load(cmd.Flags())
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	flags.register(root.PersistentFlags())

	current := func() config.Config { return cfg }
	root.AddCommand(
		serveCmd(current),
		tuiCmd(current),
		addCmd(current),
		listCmd(current),
		completeCmd(current),
		agentCmd(current),
		exportCmd(current),
		migrateCmd(current),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "todoflow: %v\n", err)
		os.Exit(1)
	}
}
