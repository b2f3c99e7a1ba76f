// Package telemetry implements opt-in, best-effort usage tracking for the
// CLI. It is disabled by default; enabling it requires an explicit
// settings.json opt-in, and CODEPUNK_TELEMETRY_OPTOUT always wins.
package telemetry

import (
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// PostHogAPIKey is set at build time for production.
	PostHogAPIKey = "phc_development_key"
	// PostHogEndpoint is set at build time for production.
	PostHogEndpoint = "https://eu.i.posthog.com"
)

// Client is the telemetry sink commands report through.
type Client interface {
	TrackCommand(cmd *cobra.Command, provider, model string)
	Close()
}

// NoOpClient is used when telemetry is disabled.
type NoOpClient struct{}

func (n *NoOpClient) TrackCommand(_ *cobra.Command, _, _ string) {}
func (n *NoOpClient) Close()                                     {}

type silentLogger struct{}

func (silentLogger) Logf(_ string, _ ...interface{})   {}
func (silentLogger) Debugf(_ string, _ ...interface{}) {}
func (silentLogger) Warnf(_ string, _ ...interface{})  {}
func (silentLogger) Errorf(_ string, _ ...interface{}) {}

// PostHogClient is the real telemetry client.
type PostHogClient struct {
	client     posthog.Client
	machineID  string
	cliVersion string
	mu         sync.RWMutex
}

// NewClient returns a Client appropriate for the given opt-out env var and
// settings preference (telemetryEnabled nil or false => disabled).
func NewClient(version string, telemetryEnabled *bool, optOutEnv string) Client {
	if optOutEnv != "" {
		return &NoOpClient{}
	}
	if telemetryEnabled == nil || !*telemetryEnabled {
		return &NoOpClient{}
	}

	id, err := machineid.ProtectedID("codepunk-cli")
	if err != nil {
		return &NoOpClient{}
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 100 * time.Millisecond,
		}).DialContext,
		TLSHandshakeTimeout:   100 * time.Millisecond,
		ResponseHeaderTimeout: 100 * time.Millisecond,
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:           PostHogEndpoint,
		ShutdownTimeout:    100 * time.Millisecond,
		BatchUploadTimeout: 200 * time.Millisecond,
		Transport:          transport,
		Logger:             silentLogger{},
		DisableGeoIP:       posthog.Ptr(true),
		DefaultEventProperties: posthog.NewProperties().
			Set("cli_version", version).
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH),
	})
	if err != nil {
		return &NoOpClient{}
	}

	return &PostHogClient{client: client, machineID: id, cliVersion: version}
}

// TrackCommand records one command execution, including the AI
// provider/model in play (if any) and the flag names used (not values, for
// privacy).
func (p *PostHogClient) TrackCommand(cmd *cobra.Command, provider, model string) {
	if cmd == nil || cmd.Hidden {
		return
	}

	p.mu.RLock()
	id := p.client
	mid := p.machineID
	p.mu.RUnlock()
	if id == nil {
		return
	}

	var flags []string
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		flags = append(flags, flag.Name)
	})

	props := posthog.NewProperties().
		Set("command", cmd.CommandPath()).
		Set("provider", provider).
		Set("model", model)
	if len(flags) > 0 {
		props.Set("flags", strings.Join(flags, ","))
	}

	//nolint:errcheck // best-effort telemetry, failures should not affect CLI behavior
	_ = id.Enqueue(posthog.Capture{
		DistinctId: mid,
		Event:      "cli_command_executed",
		Properties: props,
	})
}

// Close flushes pending events.
func (p *PostHogClient) Close() {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()
	if c != nil {
		_ = c.Close()
	}
}
