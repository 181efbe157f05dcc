package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/takama/daemon"
	"github.com/tauraamui/dragoncam/pkg/log"
)

var service *Service

var rootCmd = &cobra.Command{
	Use:           "dragoncam",
	Short:         description,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		srv, err := daemon.New(name, description, daemonKind())
		if err != nil {
			return err
		}
		service = &Service{srv}
		return nil
	},
	RunE: manage(func() (string, error) { return service.Serve() }),
}

func manage(op func() (string, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		status, err := op()
		if err != nil {
			return err
		}
		log.Info(status)
		return nil
	}
}

func subcommand(use, short string, op func() (string, error)) *cobra.Command {
	return &cobra.Command{Use: use, Short: short, Args: cobra.NoArgs, RunE: manage(op)}
}

func daemonKind() daemon.Kind {
	if runtime.GOOS == "darwin" {
		return daemon.UserAgent
	}
	return daemon.SystemDaemon
}

func init() {
	rootCmd.AddCommand(
		subcommand("setup", "Write the default config and create the user database", func() (string, error) { return service.Setup() }),
		subcommand("remove-setup", "Delete the user database and config", func() (string, error) { return service.RemoveSetup() }),
		subcommand("install", "Install dragoncam as a system service", func() (string, error) { return service.Install() }),
		subcommand("remove", "Uninstall the dragoncam system service", func() (string, error) { return service.Remove() }),
		subcommand("start", "Start the dragoncam system service", func() (string, error) { return service.Start() }),
		subcommand("stop", "Stop the dragoncam system service", func() (string, error) { return service.Stop() }),
		subcommand("status", "Show the dragoncam system service status", func() (string, error) { return service.Status() }),
	)
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "unable to load .env file: %v\n", err)
	}
	log.SetLevel(os.Getenv("DRAGONCAM_LOGGING_LEVEL"))

	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
