package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"go.bug.st/serial"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"i4.energy/across/vibralarm/alarm"
	"i4.energy/across/vibralarm/audio"
	"i4.energy/across/vibralarm/board"
	"i4.energy/across/vibralarm/command"
	"i4.energy/across/vibralarm/logger"
	"i4.energy/across/vibralarm/modem"
	"i4.energy/across/vibralarm/relay"
	"i4.energy/across/vibralarm/store"
	"i4.energy/across/vibralarm/system"
	"i4.energy/across/vibralarm/urc"
)

const shutdownTimeout = 10 * time.Second

// App wires the controller around one modem link.
type App struct {
	config *Config
	log    *zap.SugaredLogger

	link       *Link
	board      *board.Board
	bank       *relay.Bank
	machine    *alarm.Machine
	processor  *command.Processor
	dispatcher *urc.Dispatcher
}

// NewApp opens the board, restores the runtime settings and builds the
// components.
func NewApp(ctx context.Context, config *Config) (*App, error) {
	log := logger.Named("app")

	b, err := board.Open(config.Board, logger.Named("board"))
	if err != nil {
		return nil, err
	}

	settings := store.NewFileRepository(config.StateFile)
	key, activeHigh := config.Key, config.RelayActiveHigh
	switch saved, err := settings.Load(ctx); {
	case err == nil:
		if command.ValidateKey(saved.Key) == nil {
			key = saved.Key
		}
		activeHigh = saved.RelayActiveHigh
		log.Infow("Restored runtime settings", "state_file", config.StateFile, "relay_active_high", activeHigh)
	case errors.Is(err, store.ErrNotFound):
	default:
		log.Warnw("Could not restore runtime settings", "state_file", config.StateFile, "error", err)
	}

	secret, err := command.NewKey(key)
	if err != nil {
		return nil, fmt.Errorf("initial key: %w", err)
	}

	player := audio.NewCommandPlayer(config.AudioDir, logger.Named("audio"))
	if config.AudioCommand != "" {
		player.Command = config.AudioCommand
	}

	link := &Link{}
	bank := relay.NewBank(b.Vibrator1, b.Vibrator2, b.Lamp, activeHigh, logger.Named("relay"))

	a := &App{
		config: config,
		log:    log,
		link:   link,
		board:  b,
		bank:   bank,
	}

	a.processor = command.NewProcessor(command.Config{
		Whitelist:     command.Whitelist(config.Numbers),
		Key:           secret,
		Messenger:     link,
		Relays:        bank,
		Restarter:     system.NewRestarter(logger.Named("system"), a.release),
		Settings:      settings,
		Logger:        logger.Named("command"),
		TestDuration:  config.TestDuration,
		ForceDuration: config.ForceDuration,
	})

	a.machine = alarm.New(alarm.Config{
		Numbers:  config.Numbers,
		Phone:    link,
		Relays:   bank,
		Presence: b,
		Player:   player,
		Logger:   logger.Named("alarm"),
		Timing:   config.Alarm,
	})

	a.dispatcher = urc.New(urc.Config{
		Modem:              link,
		Commands:           a.processor,
		Player:             player,
		Logger:             logger.Named("urc"),
		CountryPrefix:      config.CountryPrefix,
		SendMenu:           config.SendMenu,
		RejectUnauthorized: config.RejectUnauthorized,
	})

	return a, nil
}

// Run blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.machine.Run(ctx) })
	g.Go(func() error { return a.board.Watch(ctx, a.machine.OnVibration, a.machine.OnButton) })
	g.Go(func() error { return a.supervise(ctx) })
	if a.config.BindAddress != "" {
		g.Go(func() error { return a.serve(ctx) })
	}

	err := g.Wait()
	a.release()

	return err
}

// release switches the outputs off and drops the modem.
func (a *App) release() {
	a.bank.CancelOverride()
	a.bank.Set(false, false, false)

	if m, err := a.link.current(); err == nil {
		a.link.set(nil)
		if err := m.Close(); err != nil && !errors.Is(err, modem.ErrAlreadyClosed) {
			a.log.Warnw("Failed to close modem", "error", err)
		}
	}
}

// supervise keeps a modem connected, reconnecting with backoff whenever
// dialling, initialization or the reader loop fails.
func (a *App) supervise(ctx context.Context) error {
	b := &backoff.Backoff{
		Min:    a.config.ReconnectMin,
		Max:    a.config.ReconnectMax,
		Factor: 2,
		Jitter: true,
	}

	for ctx.Err() == nil {
		err := a.connect(ctx)
		if ctx.Err() != nil {
			break
		}

		if errors.Is(err, modem.ErrSIMPinRequired) {
			return err
		}

		delay := b.Duration()
		a.log.Errorw("Modem link lost, reconnecting", "error", err, "retry_in", delay)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}

	return nil
}

// connect runs one modem session until its reader loop ends.
func (a *App) connect(ctx context.Context) error {
	m, err := newModem(ctx, a.config, logger.Named("modem"))
	if err != nil {
		return err
	}
	defer func() {
		a.link.set(nil)
		_ = m.Close()
	}()

	a.link.set(m)
	a.log.Infow("Modem connected", "port", a.config.SerialPort)

	session, cancel := context.WithCancel(ctx)
	defer cancel()

	loopErr := make(chan error, 1)
	go func() { loopErr <- m.Loop(session) }()
	go func() { _ = a.dispatcher.Serve(session, m.URC()) }()

	return <-loopErr
}

func (a *App) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr: a.config.BindAddress,
		Handler: &Server{
			Logger:  logger.Named("server"),
			Modem:   a.link,
			Machine: a.machine,
			Relays:  a.bank,
			Link:    a.link,
		},
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		a.log.Infow("Starting HTTP server", "address", srv.Addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	a.log.Info("Closing HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}

// newModem dials the configured serial port and initializes the modem. The
// modem lives until ctx is cancelled or it is closed.
func newModem(ctx context.Context, config *Config, log *zap.SugaredLogger) (*modem.Modem, error) {
	modemConfig, err := modem.NewConfigBuilder().
		WithSimPIN(config.SimPIN).
		WithLogger(log).
		WithDialer(modem.SerialDialer{
			PortName: config.SerialPort,
			Mode: &serial.Mode{
				BaudRate: config.BaudRate,
				DataBits: 8,
				Parity:   serial.NoParity,
				StopBits: serial.OneStopBit,
			},
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("modem config: %w", err)
	}

	return modem.New(ctx, modemConfig)
}
