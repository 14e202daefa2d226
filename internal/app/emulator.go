package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/relabs-tech/nmea_injector/internal/config"
	"github.com/relabs-tech/nmea_injector/internal/emulator"
	"github.com/relabs-tech/nmea_injector/internal/sentence"
)

// RunEmulator sends generated GGA and heading sentences to the configured UDP
// target, and to a serial port when one is set, until ctx is done.
func RunEmulator(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	heading, err := sentence.ParseHeadingType(cfg.HeadingSentence)
	if err != nil {
		return err
	}

	conn, err := emulator.DialUDP(cfg.EmulatorAddr())
	if err != nil {
		return err
	}
	defer conn.Close()
	sinks := []emulator.Sink{{Name: "udp " + cfg.EmulatorAddr(), W: conn}}

	if cfg.EmulatorSerialPort != "" {
		port, err := emulator.OpenSerial(cfg.EmulatorSerialPort, cfg.EmulatorBaudRate)
		if err != nil {
			return err
		}
		defer port.Close()
		sinks = append(sinks, emulator.Sink{Name: "serial " + cfg.EmulatorSerialPort, W: port})
		logger.Info("emulator serial port opened", "port", cfg.EmulatorSerialPort, "baud", cfg.EmulatorBaudRate)
	}

	gen := emulator.NewGenerator(emulator.Config{
		Latitude:    cfg.EmulatorLat,
		Longitude:   cfg.EmulatorLon,
		Satellites:  cfg.EmulatorSatellites,
		HDOP:        cfg.EmulatorHDOP,
		Heading:     cfg.EmulatorHeading,
		HeadingType: heading,
		Course:      cfg.EmulatorCourse,
		SpeedKph:    cfg.EmulatorSpeedKph,
		Aux:         cfg.EmulatorAux,
	}, time.Now())

	logger.Info("sending packets", "addr", cfg.EmulatorAddr(), "interval", cfg.EmulatorInterval,
		"heading_sentence", string(heading))
	err = emulator.New(gen, cfg.EmulatorInterval, logger, sinks...).Run(ctx)
	logger.Info("emulator stopped")
	return err
}
