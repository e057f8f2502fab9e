// Package agent wires the signing provider, delivery client, monitors,
// and command executor into one supervised process.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/admin-iq/iq-agent/internal/delivery"
	"github.com/admin-iq/iq-agent/internal/executor"
	"github.com/admin-iq/iq-agent/internal/metrics"
	"github.com/admin-iq/iq-agent/internal/monitor"
	"github.com/admin-iq/iq-agent/internal/security"
	"github.com/admin-iq/iq-agent/internal/vitals"
)

// Agent owns the monitor loops and the command executor. Monitors run
// as independent goroutines; the dedup filter belongs to its monitor
// and the signing provider is shared read-only.
type Agent struct {
	log          zerolog.Logger
	monitors     []*monitor.Monitor
	vitalsFeed   *monitor.VitalsFeed
	source       monitor.EventSource
	executor     *executor.Executor
	pollInterval time.Duration
	metricsAddr  string
}

// New builds the agent from configuration. Bad key material or a
// missing required setting is fatal; nothing here may run unsigned.
func New(cfg *Config, log zerolog.Logger) (*Agent, error) {
	accessToken, err := cfg.RequireString("security.access_token")
	if err != nil {
		return nil, err
	}
	clientID, err := cfg.RequireString("security.client_id")
	if err != nil {
		return nil, err
	}
	clientSecret, err := cfg.RequireString("security.client_secret")
	if err != nil {
		return nil, err
	}
	logURL, err := cfg.RequireString("service.log_url")
	if err != nil {
		return nil, err
	}

	sec, err := security.New(accessToken, clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("initializing security provider: %w", err)
	}

	client := delivery.New(sec,
		cfg.GetInt("delivery.retries"),
		time.Duration(cfg.GetInt("delivery.timeout"))*time.Second,
		log)

	a := &Agent{
		log:         log.With().Str("component", "agent").Logger(),
		metricsAddr: cfg.GetString("metrics.listen"),
	}

	source, err := monitor.NewPlatformSource(log)
	if err != nil {
		return nil, fmt.Errorf("initializing event source: %w", err)
	}
	a.source = source

	dedup := monitor.NewDedup(cfg.GetInt("monitor.dedup_limit"))
	logFeed := monitor.NewLogFeed(source, dedup, monitor.DedupField)
	a.monitors = append(a.monitors,
		monitor.New(source.Name(), logURL, logFeed, client, log))

	collector := vitals.NewCollector(log)
	a.vitalsFeed = monitor.NewVitalsFeed(collector,
		time.Duration(cfg.GetInt("vitals.interval"))*time.Second)
	a.monitors = append(a.monitors,
		monitor.New("vitals", logURL, a.vitalsFeed, client, log))

	if cfg.Has("service.command_url") {
		commandURL := cfg.GetString("service.command_url")
		a.executor = executor.New(commandURL, sec, client,
			time.Duration(cfg.GetInt("executor.poll_timeout"))*time.Second,
			log)
		a.pollInterval = time.Duration(cfg.GetInt("executor.poll_interval")) * time.Second
	} else {
		a.log.Warn().Msg("service.command_url not set, command executor disabled")
	}

	return a, nil
}

// Run starts every monitor and the executor poll loop, then blocks
// until ctx is canceled and all loops have wound down.
func (a *Agent) Run(ctx context.Context) {
	a.log.Info().Msg("agent started")

	if a.metricsAddr != "" {
		go a.serveMetrics()
	}

	var wg sync.WaitGroup
	for _, m := range a.monitors {
		m := m
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Run(ctx)
		}()
	}

	if a.executor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.runExecutor(ctx)
		}()
	}

	wg.Wait()
	a.vitalsFeed.Stop()
	if err := a.source.Close(); err != nil {
		a.log.Debug().Err(err).Msg("closing event source")
	}
	a.log.Info().Msg("agent stopped")
}

// runExecutor ticks the command poll cycle, starting with an immediate
// poll so freshly issued commands are not delayed a full interval.
func (a *Agent) runExecutor(ctx context.Context) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	a.executor.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.executor.Run(ctx)
		}
	}
}

func (a *Agent) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.log.Info().Str("addr", a.metricsAddr).Msg("metrics listener started")
	if err := http.ListenAndServe(a.metricsAddr, mux); err != nil {
		a.log.Error().Err(err).Msg("metrics listener failed")
	}
}
