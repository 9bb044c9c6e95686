package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/koding/multiconfig"
	"github.com/nergy-se/ratecontroller/pkg/api/v1/config"
	"github.com/nergy-se/ratecontroller/pkg/api/v1/types"
	"github.com/nergy-se/ratecontroller/pkg/app"
	"github.com/nergy-se/ratecontroller/pkg/servicemanager"
	"github.com/nergy-se/ratecontroller/pkg/version"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := Run(ctx)
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
	logrus.Warn("shutting down.")
}

func Run(ctx context.Context) error {
	config := &config.CliConfig{}
	err := multiconfig.New().Load(config)
	if err != nil {
		return err
	}
	lvl, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return fmt.Errorf("error setting logrus loglevel: %w", err)
	}
	logrus.SetLevel(lvl)

	logrus.WithFields(logrus.Fields{
		"version":    version.Version.String(),
		"configfile": config.ConfigPath(),
		"manager":    config.ServiceManager,
	}).Info("starting ratecontroller")

	services, err := servicemanager.New(types.ServiceManagerType(config.ServiceManager))
	if err != nil {
		return err
	}
	defer services.Close()

	app := app.New(config, services)

	err = app.Start(ctx)
	if err != nil {
		return err
	}

	app.Wait()
	return nil
}
