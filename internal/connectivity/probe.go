package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/kimhsiao/dietdaily/internal/logging"
)

// Probe is a Monitor that determines connectivity by periodically
// issuing a HEAD request against a reachability endpoint, typically the
// remote backend's health URL. State changes propagate to subscribers
// exactly like Manual transitions.
type Probe struct {
	manual   *Manual
	endpoint string
	interval time.Duration
	client   *http.Client

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// ProbeConfig holds probe configuration.
type ProbeConfig struct {
	Endpoint string        // URL to probe
	Interval time.Duration // default: 30s
	Timeout  time.Duration // per-request, default: 5s
}

// NewProbe creates a Probe. The initial state is offline until the
// first successful check; call Start to begin probing.
func NewProbe(config ProbeConfig) *Probe {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	return &Probe{
		manual:   NewManual(false),
		endpoint: config.Endpoint,
		interval: config.Interval,
		client:   &http.Client{Timeout: config.Timeout},
		stopCh:   make(chan struct{}),
	}
}

// Online returns the last probed state.
func (p *Probe) Online() bool {
	return p.manual.Online()
}

// Subscribe registers a transition callback.
func (p *Probe) Subscribe(callback func(online bool)) func() {
	return p.manual.Subscribe(callback)
}

// Start probes once immediately, then on every interval tick until
// Stop is called or the context is cancelled.
func (p *Probe) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.check(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.check(ctx)
			}
		}
	}()
}

// Stop halts probing and waits for the probe goroutine to exit.
func (p *Probe) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Probe) check(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.endpoint, nil)
	if err != nil {
		p.manual.SetOnline(false)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if p.manual.Online() {
			logging.Info("Connectivity lost", map[string]interface{}{"endpoint": p.endpoint})
		}
		p.manual.SetOnline(false)
		return
	}
	resp.Body.Close()

	online := resp.StatusCode < 500
	if online && !p.manual.Online() {
		logging.Info("Connectivity regained", map[string]interface{}{"endpoint": p.endpoint})
	}
	p.manual.SetOnline(online)
}
