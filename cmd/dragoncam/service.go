package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/takama/daemon"
	"github.com/tauraamui/dragoncam/pkg/config"
	"github.com/tauraamui/dragoncam/pkg/configdef"
	db "github.com/tauraamui/dragoncam/pkg/database"
	"github.com/tauraamui/dragoncam/pkg/dragon"
	"github.com/tauraamui/dragoncam/pkg/log"
)

const (
	name        = "dragoncam"
	description = "Dragon camera daemon which streams live MJPEG frames and relays drive commands"
)

type Service struct {
	daemon.Daemon
}

// Setup writes the default config and creates the local DB, asking
// for root admin credentials.
func (service *Service) Setup() (string, error) {
	log.Info("Setting up dragoncam service...")

	err := config.DefaultCreator().Create()
	if err != nil {
		if !errors.Is(err, configdef.ErrConfigAlreadyExists) {
			return "", err
		}
		log.Error(err.Error())
	}

	err = db.Setup()
	if err != nil {
		if !errors.Is(err, db.ErrDBAlreadyExists) {
			return "", err
		}
		log.Error(err.Error())
	}

	return "Setup successful...", nil
}

func (service *Service) RemoveSetup() (string, error) {
	log.Info("Removing setup for dragoncam service...")
	if err := db.Destroy(); err != nil {
		log.Error("unable to delete database file: %s", err.Error())
	}

	if err := config.DefaultDestroyer().Destroy(); err != nil {
		log.Error("unable to delete config file: %s", err.Error())
	}

	return "Removing setup successful...", nil
}

// Serve runs the server until the process receives an interrupt or terminate signal.
func (service *Service) Serve() (string, error) {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	log.Info("Starting dragoncam...")

	server, err := dragon.NewServer(config.DefaultResolver(), nil)
	if err != nil {
		return "", err
	}

	server.SetupProcesses()
	server.RunProcesses()

	killSignal := <-interrupt
	fmt.Print("\r")
	log.Error("Received signal: %s", killSignal)

	log.Info("Shutting down server...")
	<-server.Shutdown()

	return "Shutdown successful... BYE! 👋", nil
}
