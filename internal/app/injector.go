package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/nmea_injector/internal/config"
	"github.com/relabs-tech/nmea_injector/internal/forwarder"
	"github.com/relabs-tech/nmea_injector/internal/gps"
	"github.com/relabs-tech/nmea_injector/internal/listener"
	"github.com/relabs-tech/nmea_injector/internal/mqttpub"
	"github.com/relabs-tech/nmea_injector/internal/sentence"
	"github.com/relabs-tech/nmea_injector/internal/ugps"
	"github.com/relabs-tech/nmea_injector/internal/web"
)

// Injector wires the UDP listener, the shared state and the forwarder for
// one process run.
type Injector struct {
	cfg     *config.Config
	session string
	logger  *slog.Logger

	state     *gps.State
	listener  *listener.Listener
	client    *ugps.Client
	forwarder *forwarder.Forwarder
	mqtt      *mqttpub.Publisher
	web       *web.Server
}

// Status is served on /api/status.
type Status struct {
	Session   string          `json:"session"`
	ListenOn  string          `json:"listen_on"`
	G2URL     string          `json:"g2_url"`
	Rate      float64         `json:"rate"`
	Heading   string          `json:"heading_sentence"`
	Ready     web.Readiness   `json:"ready"`
	Listener  listener.Stats  `json:"listener"`
	Forwarder forwarder.Stats `json:"forwarder"`
}

// NewInjector binds the UDP socket and builds every component. Failing to
// bind is fatal: without the socket there is nothing to forward.
func NewInjector(cfg *config.Config, logger *slog.Logger) (*Injector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session := uuid.NewString()
	logger = logger.With("session", session[:8])

	heading, err := sentence.ParseHeadingType(cfg.HeadingSentence)
	if err != nil {
		return nil, err
	}

	inj := &Injector{
		cfg:     cfg,
		session: session,
		logger:  logger,
		state:   gps.NewState(logger.With("component", "state")),
	}

	inj.listener, err = listener.Listen(listener.Config{
		Addr:        cfg.ListenAddr(),
		ReadTimeout: cfg.ReadTimeout,
		BufferSize:  cfg.BufferSize,
	}, sentence.NewClassifier(heading), inj.state, logger)
	if err != nil {
		return nil, err
	}

	var mirrors []forwarder.Mirror
	if cfg.MQTTBroker != "" {
		inj.mqtt, err = mqttpub.Connect(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic, logger)
		if err != nil {
			inj.listener.Close()
			return nil, err
		}
		mirrors = append(mirrors, inj.mqtt)
	}

	inj.client = ugps.NewClient(cfg.G2URL, cfg.RequestTimeout, logger)
	inj.forwarder = forwarder.New(inj.state, inj.client, cfg.Rate, logger, mirrors...)

	if cfg.StatusAddr != "" {
		inj.web = web.New(web.Config{Addr: cfg.StatusAddr}, inj.state, func() any { return inj.Status() }, logger)
	}
	return inj, nil
}

// ListenAddr is the bound UDP address, useful when the port was 0.
func (inj *Injector) ListenAddr() net.Addr { return inj.listener.Addr() }

func (inj *Injector) State() *gps.State { return inj.state }

func (inj *Injector) Status() Status {
	return Status{
		Session:   inj.session,
		ListenOn:  inj.listener.Addr().String(),
		G2URL:     inj.client.BaseURL(),
		Rate:      inj.cfg.Rate,
		Heading:   inj.cfg.HeadingSentence,
		Ready:     web.ReadinessOf(inj.state),
		Listener:  inj.listener.Stats(),
		Forwarder: inj.forwarder.Stats(),
	}
}

// Run listens and forwards until ctx is cancelled. The forwarder only starts
// once the topside has answered a probe; the listener runs from the start so
// the state is warm by then.
func (inj *Injector) Run(ctx context.Context) error {
	defer func() {
		if inj.mqtt != nil {
			inj.mqtt.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return inj.listener.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		return inj.listener.Close()
	})

	if inj.web != nil {
		g.Go(func() error { return inj.web.Run(gctx) })
	}

	g.Go(func() error {
		if !inj.forwarder.Enabled() {
			inj.logger.Info("rate is 0, observe-only: not sending to the topside")
			return nil
		}
		if err := inj.client.WaitForConnection(gctx, inj.cfg.ProbeInterval); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		inj.logger.Info(fmt.Sprintf("Sending external position to %s at %v Hz", inj.client.BaseURL(), inj.cfg.Rate))
		return inj.forwarder.Run(gctx)
	})

	err := g.Wait()
	inj.logger.Info("stopped", "listener", inj.listener.Stats(), "forwarder", inj.forwarder.Stats())
	return err
}

// RunInjector builds and runs an Injector until ctx is done.
func RunInjector(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	inj, err := NewInjector(cfg, logger)
	if err != nil {
		return err
	}
	return inj.Run(ctx)
}
