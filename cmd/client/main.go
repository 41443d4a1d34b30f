package main

import (
	"appupdate-go/configs/config"
	"appupdate-go/internal/logging"
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// restartExitCode tells the service supervisor to start the client again on the new bundle.
const restartExitCode = 3

type clientArgs struct {
	configPath string
	once       bool
	debug      bool
}

func newRootCmd() *cobra.Command {
	ca := clientArgs{}
	cmd := &cobra.Command{
		Use:           "appupdate-client",
		Short:         "Check for and install over-the-air bundle updates",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClient(cmd.Context(), ca)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&ca.configPath, "config", "c", os.Getenv("APPUPDATE_CONF"), "Path to config.toml (default: search /etc/appupdate, $HOME/.appupdate and .)")
	flags.BoolVar(&ca.once, "once", false, "Run a single check even if poll_interval_seconds is set")
	flags.BoolVar(&ca.debug, "debug", false, "Enable debug logging")
	return cmd
}

// errRestart asks main to exit with restartExitCode.
type errRestart struct{}

func (errRestart) Error() string { return "restart requested" }

func runClient(ctx context.Context, ca clientArgs) error {
	cfg, err := config.Load(ca.configPath)
	if err != nil {
		return err
	}
	if ca.debug {
		cfg.Logging.Level = "debug"
	}
	if ca.once {
		cfg.PollIntervalSeconds = 0
	}
	if err := logging.InitLog(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Info("Update client starting...")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warnf("Shutdown: %v", err)
		}
	}()

	if a.run(ctx) {
		return errRestart{}
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if _, ok := err.(errRestart); ok {
			os.Exit(restartExitCode)
		}
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
