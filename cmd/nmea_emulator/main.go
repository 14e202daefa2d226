// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// nmea_emulator sends fake GGA and heading sentences to a UDP port.
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
	fs := flag.NewFlagSet("nmea_emulator", flag.ExitOnError)
	configPath := fs.String("config", "", "optional config file (KEY=VALUE, or YAML if .yaml/.yml)")
	fs.String("emulator-ip", d.EmulatorIP, "target IP address")
	fs.Int("emulator-port", d.EmulatorPort, "target port")
	fs.Duration("emulator-interval", d.EmulatorInterval, "time between packets")
	fs.String("emulator-serial-port", d.EmulatorSerialPort, "also write sentences to this serial port (empty disables)")
	fs.Int("emulator-baud-rate", d.EmulatorBaudRate, "serial baud rate")
	fs.Float64("emulator-lat", d.EmulatorLat, "start latitude, decimal degrees")
	fs.Float64("emulator-lon", d.EmulatorLon, "start longitude, decimal degrees")
	fs.Float64("emulator-heading", d.EmulatorHeading, "compass heading, degrees")
	fs.Float64("emulator-course", d.EmulatorCourse, "mean course over ground, degrees")
	fs.Float64("emulator-speed-kph", d.EmulatorSpeedKph, "speed over ground, km/h")
	fs.Bool("emulator-aux", d.EmulatorAux, "also send RMC and VTG")
	fs.String("heading-sentence", d.HeadingSentence, "heading sentence to send: HDM or HDT")
	fs.String("log-level", d.LogLevel, "debug, info, warn or error")
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
	logger, closeLog, err := logging.Setup(logging.Options{Level: level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("press Ctrl-C to stop")
	if err := app.RunEmulator(ctx, cfg, logger); err != nil {
		logger.Error("fatal", "err", err)
		stop()
		os.Exit(1)
	}
}
