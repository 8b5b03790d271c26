package credaudit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// CredentialSource lists the current credentials of one identity
// provider. A source must tolerate partial data: a credential without an
// observed use is returned with LastUsed nil, not as an error. A failed
// listing is a data error and fails the whole run.
type CredentialSource interface {
	ListCredentials(ctx context.Context) ([]Credential, error)
}

// ActionClient performs lifecycle operations against one identity
// provider. Implementations exist per Service; the executor depends only
// on this interface.
type ActionClient interface {
	// Disable deactivates the credential without destroying it.
	Disable(ctx context.Context, kind CredentialKind, id, owner string) error

	// Delete removes the credential permanently.
	Delete(ctx context.Context, kind CredentialKind, id, owner string) error
}

// RunOptions configures one audit run.
type RunOptions struct {
	// Apply performs real provider calls when true. When false (dry-run)
	// the run only logs the actions that would be taken; counters are
	// still populated for reporting.
	Apply bool

	// Now is the reference time for inactivity computation. The zero
	// value means time.Now().
	Now time.Time
}

// Executor resolves lifecycle actions for a credential batch and applies
// (or simulates) them. Per-credential failures are counted and logged;
// they never abort the batch.
type Executor struct {
	clients map[Service]ActionClient
	logger  *slog.Logger
	metrics Metrics
}

// ExecutorOption configures the Executor.
type ExecutorOption func(*Executor)

// WithActionClient registers the action client for a service.
func WithActionClient(service Service, client ActionClient) ExecutorOption {
	return func(e *Executor) {
		e.clients[service] = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor creates an Executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		clients: make(map[Service]ActionClient),
		logger:  slog.Default(),
		metrics: NopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run audits the credential batch under the given policy and returns the
// run statistics. It fails fast on configuration errors; individual
// disable/delete failures are counted in Failed and the batch continues.
func (e *Executor) Run(ctx context.Context, credentials []Credential, spec InactiveSpec, opts RunOptions) (CredentialStats, error) {
	if err := spec.Validate(); err != nil {
		return CredentialStats{}, err
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	logger := e.logger.With("run_id", uuid.NewString(), "apply", opts.Apply)
	started := time.Now()

	stats := CredentialStats{Total: len(credentials)}
	inactive := IdentifyInactive(credentials, spec, now)

	actionable := inactive[:0]
	for _, ic := range inactive {
		if spec.IsWhitelisted(ic.Credential) {
			logger.Info("skipping whitelisted credential",
				"service", ic.Credential.Service,
				"kind", ic.Credential.Kind,
				"id", ic.Credential.ID,
				"user", ic.Credential.UserName,
				"action", ic.Action)
			continue
		}
		actionable = append(actionable, ic)
	}

	if opts.Apply {
		if err := e.checkClients(actionable); err != nil {
			return CredentialStats{}, err
		}
	}

	for _, ic := range actionable {
		client := e.clientFor(ic.Credential.Service, opts.Apply, logger)
		c := ic.Credential

		var err error
		switch ic.Action {
		case ActionDisable:
			err = client.Disable(ctx, c.Kind, c.ID, c.UserName)
		case ActionDelete:
			err = client.Delete(ctx, c.Kind, c.ID, c.UserName)
		default:
			// Keep never reaches the executor.
			continue
		}

		if err != nil {
			stats.Failed++
			logger.Error("credential action failed",
				"service", c.Service, "kind", c.Kind, "id", c.ID,
				"user", c.UserName, "action", ic.Action, "error", err)
			continue
		}

		switch ic.Action {
		case ActionDisable:
			stats.Disabled++
		case ActionDelete:
			stats.Deleted++
		}
	}

	stats.Kept = stats.Total - stats.Disabled - stats.Deleted - stats.Failed

	logger.Info("audit run complete",
		"total", stats.Total, "kept", stats.Kept,
		"disabled", stats.Disabled, "deleted", stats.Deleted,
		"failed", stats.Failed)
	e.metrics.RecordRun(stats, time.Since(started))

	return stats, nil
}

// checkClients verifies that every service present in the actionable set
// has a registered action client. Running in apply mode without a client
// is a configuration error, caught before any side effects.
func (e *Executor) checkClients(actionable []InactiveCredential) error {
	for _, ic := range actionable {
		if _, ok := e.clients[ic.Credential.Service]; !ok {
			return ErrValidation(fmt.Sprintf("no action client registered for service %q", ic.Credential.Service)).
				WithService(ic.Credential.Service).
				WithOperation("run")
		}
	}
	return nil
}

// clientFor selects the real provider client in apply mode and a no-op
// logging client otherwise. The execution loop is a single code path
// either way.
func (e *Executor) clientFor(service Service, apply bool, logger *slog.Logger) ActionClient {
	if apply {
		return e.clients[service]
	}
	return dryRunClient{service: service, logger: logger}
}

// dryRunClient is an ActionClient that logs the action that would be
// taken and succeeds without touching the provider.
type dryRunClient struct {
	service Service
	logger  *slog.Logger
}

func (d dryRunClient) Disable(_ context.Context, kind CredentialKind, id, owner string) error {
	d.logger.Info("dry-run: would disable credential",
		"service", d.service, "kind", kind, "id", id, "user", owner)
	return nil
}

func (d dryRunClient) Delete(_ context.Context, kind CredentialKind, id, owner string) error {
	d.logger.Info("dry-run: would delete credential",
		"service", d.service, "kind", kind, "id", id, "user", owner)
	return nil
}
