package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() invalid: %v", err)
	}
	if got := cfg.ListenAddr(); got != "127.0.0.1:27000" {
		t.Fatalf("ListenAddr()=%q", got)
	}
	if cfg.Rate != 2.0 || cfg.G2URL != "https://demo.waterlinked.com" || cfg.HeadingSentence != "HDM" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_KeyValue(t *testing.T) {
	p := writeFile(t, "injector_config.txt", `
# listener
UDP_IP = 0.0.0.0
UDP_PORT=28000
HEADING_SENTENCE=hdt

G2_URL=http://192.168.2.94
RATE=0.5
PROBE_INTERVAL=2s
LOG=true
MQTT_BROKER=tcp://localhost:1883
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ListenAddr() != "0.0.0.0:28000" {
		t.Fatalf("ListenAddr()=%q", cfg.ListenAddr())
	}
	if cfg.HeadingSentence != "HDT" {
		t.Fatalf("heading=%q want HDT", cfg.HeadingSentence)
	}
	if cfg.Rate != 0.5 || cfg.ProbeInterval != 2*time.Second || !cfg.Log {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.MQTTTopic != "nmea_injector/position" {
		t.Fatalf("default topic lost: %q", cfg.MQTTTopic)
	}
}

func TestLoad_YAML(t *testing.T) {
	p := writeFile(t, "injector.yaml", `
udp_port: 29000
g2_url: http://ugps.local
rate: 4
request_timeout: 500ms
status_addr: ":8080"
emulator_aux: true
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.UDPPort != 29000 || cfg.Rate != 4 || cfg.RequestTimeout != 500*time.Millisecond {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.StatusAddr != ":8080" || !cfg.EmulatorAux {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.UDPIP != "127.0.0.1" {
		t.Fatalf("default udp ip lost: %q", cfg.UDPIP)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]struct {
		name    string
		content string
		want    string
	}{
		"unknown key":      {"a.txt", "NOPE=1\n", "unknown config key"},
		"no equals":        {"b.txt", "UDP_PORT\n", "invalid config line 1"},
		"bad port":         {"c.txt", "UDP_PORT=70000\n", "UDP_PORT must be 1-65535"},
		"bad rate":         {"d.txt", "RATE=-1\n", "RATE must be >= 0"},
		"bad heading":      {"e.txt", "HEADING_SENTENCE=HDG\n", "HEADING_SENTENCE"},
		"relative url":     {"f.txt", "G2_URL=ugps.local\n", "G2_URL must be an absolute URL"},
		"unknown yaml key": {"g.yaml", "udp_prot: 1\n", "invalid YAML config"},
		"bad duration":     {"h.txt", "PROBE_INTERVAL=5\n", "invalid PROBE_INTERVAL"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.name, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err=%v want containing %q", err, tt.want)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestRateZeroSkipsURLCheck(t *testing.T) {
	cfg := Default()
	cfg.Rate = 0
	cfg.G2URL = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("observe-only config rejected: %v", err)
	}
}

func TestApplyFlags_OnlyExplicitFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("udp-ip", "127.0.0.1", "")
	fs.Int("udp-port", 27000, "")
	fs.Float64("rate", 2.0, "")
	fs.Bool("log", false, "")
	if err := fs.Parse([]string{"-config", "x.txt", "-udp-port", "27500", "-log"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := Default()
	cfg.UDPIP = "10.0.0.1" // from a config file, not overridden by the flag default
	if err := cfg.ApplyFlags(fs); err != nil {
		t.Fatalf("ApplyFlags() error: %v", err)
	}
	if cfg.UDPIP != "10.0.0.1" || cfg.UDPPort != 27500 || !cfg.Log || cfg.Rate != 2.0 {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestApplyFlags_BadValue(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("heading-sentence", "HDM", "")
	fs.String("emulator-port", "27000", "")
	if err := fs.Parse([]string{"-emulator-port", "0"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := Default().ApplyFlags(fs); err == nil || !strings.Contains(err.Error(), "-emulator-port") {
		t.Fatalf("err=%v", err)
	}
}

func TestIPv6Addr(t *testing.T) {
	cfg := Default()
	cfg.UDPIP = "::1"
	if got := cfg.ListenAddr(); got != "[::1]:27000" {
		t.Fatalf("ListenAddr()=%q", got)
	}
}
