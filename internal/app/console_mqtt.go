package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/nmea_injector/internal/config"
	"github.com/relabs-tech/nmea_injector/internal/gps"
	"github.com/relabs-tech/nmea_injector/internal/mqttpub"
)

// RunConsoleMQTT prints every snapshot mirrored to the MQTT topic until ctx
// is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	broker := cfg.MQTTBroker
	if broker == "" {
		broker = "tcp://localhost:1883"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(mqttpub.ClientID(cfg.MQTTClientID + "-console"))

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	logger.Info("console: connected to MQTT broker", "broker", broker)

	token := client.Subscribe(cfg.MQTTTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var snap gps.Snapshot
		if err := json.Unmarshal(msg.Payload(), &snap); err != nil {
			logger.Warn("console: snapshot unmarshal error", "err", err)
			return
		}
		fmt.Fprintln(out, FormatSnapshot(snap))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	logger.Info("console: subscribed", "topic", cfg.MQTTTopic)

	<-ctx.Done()
	logger.Info("console: shutting down")
	return nil
}

// FormatSnapshot renders one console line.
func FormatSnapshot(s gps.Snapshot) string {
	return fmt.Sprintf(
		"[GPS ]  lat=%.6f lon=%.6f hdg=%6.2f° fix=%d sats=%2d hdop=%.1f",
		s.Latitude, s.Longitude, s.Orientation, s.FixQuality, s.NumSats, s.HDOP,
	)
}
