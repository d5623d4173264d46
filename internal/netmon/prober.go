package netmon

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/pkritskov/shellsync/internal/logger"
	"github.com/pkritskov/shellsync/models"
)

// Prober is a minimal platform integration for headless deployments: it
// periodically attempts a TCP dial to the remote repository host and feeds
// the outcome into a Monitor. Richer platforms (mobile OS reachability
// callbacks) replace it by calling Monitor.Update directly.
type Prober struct {
	monitor  Monitor
	address  string
	class    models.ConnectionClass
	interval time.Duration
	timeout  time.Duration
	logger   *logger.Logger
}

// NewProber builds a prober for the host of baseURL. class is the link
// class reported on success; headless hosts typically report
// models.ConnectionWired.
func NewProber(monitor Monitor, baseURL string, class models.ConnectionClass, interval time.Duration, log *logger.Logger) (*Prober, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	host := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Prober{
		monitor:  monitor,
		address:  host,
		class:    class,
		interval: interval,
		timeout:  5 * time.Second,
		logger:   log,
	}, nil
}

// Run probes immediately and then on every tick until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	p.probe(ctx)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		p.monitor.Update(models.Unreachable())
		return
	}
	_ = conn.Close()

	p.monitor.Update(models.NetworkStatus{Connected: true, Class: p.class})
}
