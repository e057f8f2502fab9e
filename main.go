package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kardianos/service"
	"github.com/rs/zerolog"

	"github.com/admin-iq/iq-agent/internal/agent"
	"github.com/admin-iq/iq-agent/internal/metrics"
)

type program struct {
	agent  *agent.Agent
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		p.agent.Run(ctx)
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(30 * time.Second):
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}

func main() {
	_ = godotenv.Load()

	cfg, err := agent.LoadConfig()
	if err != nil {
		bootLog := newLogger("info")
		bootLog.Fatal().Err(err).Msg("loading configuration")
	}

	log := newLogger(cfg.GetString("log.level"))
	metrics.MustRegister()

	a, err := agent.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing agent")
	}

	svcConfig := &service.Config{
		Name:        "IQAgent",
		DisplayName: "IQ Agent",
		Description: "AdminIQ monitoring and remote command agent",
	}

	prg := &program{agent: a}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("creating service")
	}

	if len(os.Args) > 1 {
		switch cmd := os.Args[1]; cmd {
		case "install", "uninstall", "start", "stop":
			if err := service.Control(s, cmd); err != nil {
				log.Fatal().Err(err).Str("action", cmd).Msg("service control failed")
			}
			log.Info().Str("action", cmd).Msg("service control succeeded")
			return
		}
	}

	if err := s.Run(); err != nil {
		log.Fatal().Err(err).Msg("running service")
	}
}
