// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// nmea_injector listens for NMEA 0183 GGA and heading sentences on UDP and
// sends the resulting position to a Water Linked Underwater GPS topside as its
// external master position.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/nmea_injector/internal/app"
	"github.com/relabs-tech/nmea_injector/internal/config"
	"github.com/relabs-tech/nmea_injector/internal/logging"
)

func main() {
	d := config.Default()
	fs := flag.NewFlagSet("nmea_injector", flag.ExitOnError)
	configPath := fs.String("config", "", "optional config file (KEY=VALUE, or YAML if .yaml/.yml)")
	fs.String("udp-ip", d.UDPIP, "IP address to listen on for NMEA sentences")
	fs.Int("udp-port", d.UDPPort, "UDP port to listen on")
	fs.String("heading-sentence", d.HeadingSentence, "heading sentence to use: HDM (magnetic) or HDT (true)")
	fs.String("g2-url", d.G2URL, "URL of the Underwater GPS topside")
	fs.Float64("rate", d.Rate, "rate in Hz to send the position, 0 to only listen")
	fs.Duration("probe-interval", d.ProbeInterval, "interval between topside connection attempts")
	fs.Duration("request-timeout", d.RequestTimeout, "timeout of each topside request")
	fs.Bool("log", d.Log, "also write the log to log_<time>.txt")
	fs.String("log-level", d.LogLevel, "debug, info, warn or error")
	fs.String("status-addr", d.StatusAddr, "address of the local status server, e.g. :8080 (empty disables)")
	fs.String("mqtt-broker", d.MQTTBroker, "MQTT broker to mirror positions to, e.g. tcp://localhost:1883 (empty disables)")
	fs.String("mqtt-topic", d.MQTTTopic, "MQTT topic for mirrored positions")
	_ = fs.Parse(os.Args[1:])

	if err := config.InitGlobal(*configPath, fs); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	logger, closeLog, err := logging.Setup(logging.Options{Level: level, ToFile: cfg.Log, Dir: "."})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting nmea_injector (NMEA UDP -> Underwater GPS)")
	if err := app.RunInjector(ctx, cfg, logger); err != nil {
		logger.Error("fatal", "err", err)
		_ = closeLog()
		os.Exit(1)
	}
	logger.Info("nmea_injector stopped")
	_ = closeLog()
}
