// Command sift is a command line client for the sift API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "go.uber.org/automaxprocs"

	"github.com/JaimeStill/sift/internal/client"
)

var version = "dev"

// app carries the state shared by every subcommand of one root command.
type app struct {
	cfgFile string
	v       *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "sift",
		Short: "Build extraction workflows and run them against documents",
		Long: `sift drives a sift server: upload a sample document to derive an extraction
workflow, publish it, then execute it against any number of files and watch
the results arrive.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.config/sift/config.yaml)")
	flags.String("server", "http://localhost:8080/api", "base URL of the sift API")
	flags.String("owner", "", "owner id sent with every request")
	flags.String("token", "", "bearer token sent with every request")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")

	_ = a.v.BindPFlag("server", flags.Lookup("server"))
	_ = a.v.BindPFlag("owner", flags.Lookup("owner"))
	_ = a.v.BindPFlag("token", flags.Lookup("token"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(a.workflowsCmd())
	root.AddCommand(a.executeCmd())
	root.AddCommand(a.statusCmd())
	root.AddCommand(versionCmd())

	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) initConfig(_ *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home + "/.config/sift")
		}
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("SIFT")
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.v.GetString("log_level"))); err != nil {
		return fmt.Errorf("invalid log level: %s", a.v.GetString("log_level"))
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return nil
}

func (a *app) client() *client.Client {
	var opts []client.Option
	if owner := a.v.GetString("owner"); owner != "" {
		opts = append(opts, client.WithOwner(owner))
	}
	if token := a.v.GetString("token"); token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.New(a.v.GetString("server"), opts...)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sift %s\n", version)
		},
	}
}
