package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/nmea_injector/internal/app"
	"github.com/relabs-tech/nmea_injector/internal/config"
	"github.com/relabs-tech/nmea_injector/internal/logging"
)

func main() {
	d := config.Default()
	fs := flag.NewFlagSet("console_mqtt", flag.ExitOnError)
	configPath := fs.String("config", "", "optional config file (KEY=VALUE, or YAML if .yaml/.yml)")
	fs.String("mqtt-broker", "tcp://localhost:1883", "MQTT broker")
	fs.String("mqtt-topic", d.MQTTTopic, "MQTT topic the injector mirrors positions to")
	_ = fs.Parse(os.Args[1:])

	// Load configuration
	if err := config.InitGlobal(*configPath, fs); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, _, err := logging.Setup(logging.Options{Level: slog.LevelInfo})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting nmea_injector console (MQTT subscriber)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunConsoleMQTT(ctx, config.Get(), os.Stdout, logger); err != nil {
		logger.Error("fatal", "err", err)
		stop()
		os.Exit(1)
	}
}
