package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the admin HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModePoller runs the queue poller.
	ServiceModePoller ServiceMode = "poller"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModePoller,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModePoller:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, poller)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// PollerConfig contains queue poller configuration.
type PollerConfig struct {
	// Interval is the poller tick interval.
	Interval time.Duration `env:"POLLER_INTERVAL" envDefault:"30s"`

	// BatchSize is the maximum number of due jobs to fetch per tick.
	BatchSize int `env:"POLLER_BATCH_SIZE" envDefault:"25"`

	// LockLifetime is how long a claimed job's lock is honored before
	// the record becomes eligible to be claimed again.
	LockLifetime time.Duration `env:"POLLER_LOCK_LIFETIME" envDefault:"10m"`

	// DefaultConcurrency is the per-name ceiling on simultaneously
	// running jobs when a definition does not set its own.
	DefaultConcurrency int `env:"POLLER_DEFAULT_CONCURRENCY" envDefault:"5"`
}

// Sanitize applies guardrails to poller configuration values.
func (p *PollerConfig) Sanitize() {
	if p.Interval < time.Second {
		p.Interval = time.Second
	}
	if p.BatchSize < 1 {
		p.BatchSize = 1
	}
	if p.LockLifetime < 30*time.Second {
		p.LockLifetime = 30 * time.Second
	}
	if p.DefaultConcurrency < 1 {
		p.DefaultConcurrency = 1
	}
}

// MailerConfig contains SMTP configuration for outbound email jobs.
type MailerConfig struct {
	Host    string        `env:"HOST"    envDefault:"localhost"`
	Port    int           `env:"PORT"    envDefault:"25"`
	From    string        `env:"FROM"    envDefault:"no-reply@coursekit.local"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to mailer configuration values.
func (m *MailerConfig) Sanitize() {
	if m.Port < 1 || m.Port > 65535 {
		m.Port = 25
	}
	if m.Timeout < time.Second {
		m.Timeout = time.Second
	}
}
