package config

import (
	"bufio"
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values.
type Config struct {
	// UDP listener
	UDPIP       string        `yaml:"udp_ip"`
	UDPPort     int           `yaml:"udp_port"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	BufferSize  int           `yaml:"buffer_size"`

	// HeadingSentence is HDM (magnetic) or HDT (true); only one is consumed.
	HeadingSentence string `yaml:"heading_sentence"`

	// Topside
	G2URL          string        `yaml:"g2_url"`
	Rate           float64       `yaml:"rate"` // Hz, 0 = do not send
	ProbeInterval  time.Duration `yaml:"probe_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Logging
	Log      bool   `yaml:"log"` // also write log_<time>.txt
	LogLevel string `yaml:"log_level"`

	// Optional status server, empty disables
	StatusAddr string `yaml:"status_addr"`

	// Optional MQTT mirror, empty broker disables
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	MQTTClientID string `yaml:"mqtt_client_id"`

	// Emulator
	EmulatorIP         string        `yaml:"emulator_ip"`
	EmulatorPort       int           `yaml:"emulator_port"`
	EmulatorInterval   time.Duration `yaml:"emulator_interval"`
	EmulatorSerialPort string        `yaml:"emulator_serial_port"`
	EmulatorBaudRate   int           `yaml:"emulator_baud_rate"`
	EmulatorLat        float64       `yaml:"emulator_lat"`
	EmulatorLon        float64       `yaml:"emulator_lon"`
	EmulatorSatellites int           `yaml:"emulator_satellites"`
	EmulatorHDOP       float64       `yaml:"emulator_hdop"`
	EmulatorHeading    float64       `yaml:"emulator_heading"` // degrees
	EmulatorCourse     float64       `yaml:"emulator_course"`  // degrees true
	EmulatorSpeedKph   float64       `yaml:"emulator_speed_kph"`
	EmulatorAux        bool          `yaml:"emulator_aux"` // add RMC and VTG
}

// Package-level unexported variables for the singleton:
//   - globalConfig is only reachable through InitGlobal and Get.
//   - configOnce makes InitGlobal run once.
//   - configMu guards reads against the one write.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	return &Config{
		UDPIP:           "127.0.0.1",
		UDPPort:         27000,
		ReadTimeout:     100 * time.Millisecond,
		BufferSize:      4096,
		HeadingSentence: "HDM",

		G2URL:          "https://demo.waterlinked.com",
		Rate:           2.0,
		ProbeInterval:  5 * time.Second,
		RequestTimeout: 1 * time.Second,

		LogLevel: "info",

		MQTTTopic:    "nmea_injector/position",
		MQTTClientID: "nmea-injector",

		EmulatorIP:         "127.0.0.1",
		EmulatorPort:       27000,
		EmulatorInterval:   1 * time.Second,
		EmulatorBaudRate:   4800,
		EmulatorLat:        47.6075779801547,
		EmulatorLon:        -122.34390446166833,
		EmulatorSatellites: 14,
		EmulatorHDOP:       3.1,
		EmulatorHeading:    105.33,
		EmulatorCourse:     90.0,
		EmulatorSpeedKph:   1.0,
	}
}

// ListenAddr is the UDP host:port to bind.
func (c *Config) ListenAddr() string {
	return netJoin(c.UDPIP, c.UDPPort)
}

// EmulatorAddr is the UDP host:port the emulator sends to.
func (c *Config) EmulatorAddr() string {
	return netJoin(c.EmulatorIP, c.EmulatorPort)
}

func netJoin(host string, port int) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return host + ":" + strconv.Itoa(port)
}

// Load reads a configuration file on top of Default and validates it.
// Files ending in .yaml or .yml are YAML; anything else is KEY=VALUE lines.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := cfg.loadYAML(configPath); err != nil {
			return nil, err
		}
	default:
		if err := cfg.loadKeyValue(configPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(configPath string) error {
	b, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid YAML config: %w", err)
	}
	return nil
}

func (c *Config) loadKeyValue(configPath string) error {
	file, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := c.Set(key, value); err != nil {
			return fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// Set assigns one value by its KEY=VALUE name, e.g. Set("UDP_PORT", "27000").
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	// UDP listener
	case "UDP_IP":
		c.UDPIP = value
	case "UDP_PORT":
		c.UDPPort, err = parsePort(key, value)
	case "READ_TIMEOUT":
		c.ReadTimeout, err = parseDuration(key, value)
	case "BUFFER_SIZE":
		c.BufferSize, err = parseInt(key, value)
	case "HEADING_SENTENCE":
		c.HeadingSentence = strings.ToUpper(value)

	// Topside
	case "G2_URL":
		c.G2URL = value
	case "RATE":
		c.Rate, err = parseFloat(key, value)
	case "PROBE_INTERVAL":
		c.ProbeInterval, err = parseDuration(key, value)
	case "REQUEST_TIMEOUT":
		c.RequestTimeout, err = parseDuration(key, value)

	// Logging
	case "LOG":
		c.Log, err = parseBool(key, value)
	case "LOG_LEVEL":
		c.LogLevel = value

	case "STATUS_ADDR":
		c.StatusAddr = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_TOPIC":
		c.MQTTTopic = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value

	// Emulator
	case "EMULATOR_IP":
		c.EmulatorIP = value
	case "EMULATOR_PORT":
		c.EmulatorPort, err = parsePort(key, value)
	case "EMULATOR_INTERVAL":
		c.EmulatorInterval, err = parseDuration(key, value)
	case "EMULATOR_SERIAL_PORT":
		c.EmulatorSerialPort = value
	case "EMULATOR_BAUD_RATE":
		c.EmulatorBaudRate, err = parseInt(key, value)
	case "EMULATOR_LAT":
		c.EmulatorLat, err = parseFloat(key, value)
	case "EMULATOR_LON":
		c.EmulatorLon, err = parseFloat(key, value)
	case "EMULATOR_SATELLITES":
		c.EmulatorSatellites, err = parseInt(key, value)
	case "EMULATOR_HDOP":
		c.EmulatorHDOP, err = parseFloat(key, value)
	case "EMULATOR_HEADING":
		c.EmulatorHeading, err = parseFloat(key, value)
	case "EMULATOR_COURSE":
		c.EmulatorCourse, err = parseFloat(key, value)
	case "EMULATOR_SPEED_KPH":
		c.EmulatorSpeedKph, err = parseFloat(key, value)
	case "EMULATOR_AUX":
		c.EmulatorAux, err = parseBool(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return err
}

// ApplyFlags copies every flag explicitly set on the command line into the
// config. Flag "udp-port" maps to key UDP_PORT.
func (c *Config) ApplyFlags(fs *flag.FlagSet) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil || f.Name == "config" {
			return
		}
		key := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if setErr := c.Set(key, f.Value.String()); setErr != nil {
			err = fmt.Errorf("flag -%s: %w", f.Name, setErr)
		}
	})
	return err
}

// Validate checks ranges and required fields.
func (c *Config) Validate() error {
	if c.UDPIP == "" {
		return fmt.Errorf("UDP_IP is required")
	}
	if c.UDPPort < 1 || c.UDPPort > 65535 {
		return fmt.Errorf("UDP_PORT must be 1-65535, got %d", c.UDPPort)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("READ_TIMEOUT must be > 0")
	}
	if c.BufferSize < 256 {
		return fmt.Errorf("BUFFER_SIZE must be >= 256, got %d", c.BufferSize)
	}
	if c.HeadingSentence != "HDM" && c.HeadingSentence != "HDT" {
		return fmt.Errorf("HEADING_SENTENCE must be HDM or HDT, got %q", c.HeadingSentence)
	}
	if c.Rate < 0 || math.IsNaN(c.Rate) || math.IsInf(c.Rate, 0) {
		return fmt.Errorf("RATE must be >= 0, got %v", c.Rate)
	}
	if c.Rate > 0 {
		u, err := url.Parse(c.G2URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("G2_URL must be an absolute URL, got %q", c.G2URL)
		}
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("PROBE_INTERVAL must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be > 0")
	}
	if c.MQTTBroker != "" && c.MQTTTopic == "" {
		return fmt.Errorf("MQTT_TOPIC is required when MQTT_BROKER is set")
	}
	if c.EmulatorPort < 1 || c.EmulatorPort > 65535 {
		return fmt.Errorf("EMULATOR_PORT must be 1-65535, got %d", c.EmulatorPort)
	}
	if c.EmulatorInterval <= 0 {
		return fmt.Errorf("EMULATOR_INTERVAL must be > 0")
	}
	if c.EmulatorSatellites < 0 || c.EmulatorSatellites > 99 {
		return fmt.Errorf("EMULATOR_SATELLITES must be 0-99, got %d", c.EmulatorSatellites)
	}
	if c.EmulatorLat < -90 || c.EmulatorLat > 90 {
		return fmt.Errorf("EMULATOR_LAT must be -90..90, got %v", c.EmulatorLat)
	}
	if c.EmulatorLon < -180 || c.EmulatorLon > 180 {
		return fmt.Errorf("EMULATOR_LON must be -180..180, got %v", c.EmulatorLon)
	}
	if c.EmulatorSerialPort != "" && c.EmulatorBaudRate <= 0 {
		return fmt.Errorf("EMULATOR_BAUD_RATE is required with EMULATOR_SERIAL_PORT")
	}
	return nil
}

// InitGlobal initializes the global configuration from an optional file plus
// the flags set in fs. Only the first call has any effect.
func InitGlobal(configPath string, fs *flag.FlagSet) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()

		cfg := Default()
		if configPath != "" {
			if cfg, err = Load(configPath); err != nil {
				return
			}
		}
		if fs != nil {
			if err = cfg.ApplyFlags(fs); err != nil {
				return
			}
		}
		if err = cfg.Validate(); err != nil {
			return
		}
		globalConfig = cfg
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parsePort(key, value string) (int, error) {
	v, err := parseInt(key, value)
	if err != nil {
		return 0, err
	}
	if v < 1 || v > 65535 {
		return 0, fmt.Errorf("%s must be 1-65535, got %d", key, v)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	v, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}
