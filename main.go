// Package main is the entry point for the credaudit CLI.
//
// The CLI audits credentials across identity providers (AWS IAM, Duo),
// reports inactive ones and, when actions are enabled, disables or
// deletes them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/watchsec/credaudit/pkg/credaudit"

	// Import providers to register their factories
	_ "github.com/watchsec/credaudit/pkg/providers/aws"
	_ "github.com/watchsec/credaudit/pkg/providers/duo"
)

const exitError = 1

var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(exitError)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	switch cmd := args[0]; cmd {
	case "audit":
		return cmdAudit(ctx)
	case "report":
		return cmdReport(ctx)
	case "providers":
		return cmdProviders()
	case "version":
		fmt.Printf("credaudit %s\n", version)
		return nil
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nRun 'credaudit help' for usage", cmd)
	}
}

func printUsage() {
	fmt.Println(`credaudit - Credential inactivity auditing

Usage:
  credaudit <command>

Commands:
  audit       Audit credentials and apply (or dry-run) lifecycle actions
  report      Print the credential inventory and the resolved inactive set
  providers   List available providers and their capabilities
  version     Show version information
  help        Show this help message

Configuration (environment):
  DISABLE_THRESHOLD_DAYS   Days of inactivity before disable (default 60)
  DELETE_THRESHOLD_DAYS    Days of inactivity before delete (default 180)
  ACTIONS_ENABLED          Apply actions when true; dry-run otherwise (default false)
  WHITELIST                Comma-separated service:kind:id keys never acted on
  DUO_API_HOST_NAME        Duo Admin API host (optional; skips Duo when unset)
  DUO_INTEGRATION_KEY      Duo integration key
  DUO_SECRET_KEY           Duo secret key
  METRICS_LISTEN           Optional address for the Prometheus endpoint

AWS credentials and region come from the default AWS SDK chain.`)
}

func cmdAudit(ctx context.Context) error {
	cfg, err := credaudit.LoadConfig()
	if err != nil {
		return err
	}

	spec, err := cfg.Spec()
	if err != nil {
		return err
	}

	metrics, err := setupMetrics(cfg)
	if err != nil {
		return err
	}

	credentials, clients, err := gather(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []credaudit.ExecutorOption{credaudit.WithMetrics(metrics)}
	for service, client := range clients {
		opts = append(opts, credaudit.WithActionClient(service, client))
	}

	exec := credaudit.NewExecutor(opts...)
	stats, err := exec.Run(ctx, credentials, spec, credaudit.RunOptions{Apply: cfg.ActionsEnabled})
	if err != nil {
		return err
	}

	fmt.Printf("total=%d kept=%d disabled=%d deleted=%d failed=%d\n",
		stats.Total, stats.Kept, stats.Disabled, stats.Deleted, stats.Failed)
	return nil
}

func cmdReport(ctx context.Context) error {
	cfg, err := credaudit.LoadConfig()
	if err != nil {
		return err
	}

	spec, err := cfg.Spec()
	if err != nil {
		return err
	}

	credentials, _, err := gather(ctx, cfg)
	if err != nil {
		return err
	}

	now := time.Now()
	printCredentials(credentials, now)

	inactive := credaudit.IdentifyInactive(credentials, spec, now)
	printInactive(inactive, spec)
	return nil
}

func cmdProviders() error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tCAPABILITIES\tSOURCE\tACTIONS")
	for _, info := range credaudit.DescribeProviders() {
		caps := make([]string, 0, len(info.Capabilities))
		for _, c := range info.Capabilities {
			caps = append(caps, string(c))
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\n", info.Service, strings.Join(caps, ","), info.IsSource, info.IsActions)
	}
	for _, service := range credaudit.DefaultRegistry.ListFactories() {
		if _, err := credaudit.GetProvider(service); err != nil {
			fmt.Fprintf(w, "%s\t(factory, not instantiated)\t-\t-\n", service)
		}
	}
	return w.Flush()
}

// gather instantiates the configured providers and collects one combined
// credential batch. Any listing failure fails the run: classifying a
// partial batch would hide inactive credentials from the audit.
func gather(ctx context.Context, cfg *credaudit.Config) ([]credaudit.Credential, map[credaudit.Service]credaudit.ActionClient, error) {
	services := []credaudit.Service{credaudit.ServiceAWS}
	configs := map[credaudit.Service]map[string]interface{}{
		credaudit.ServiceAWS: nil,
	}

	if cfg.DuoConfigured() {
		services = append(services, credaudit.ServiceDuo)
		configs[credaudit.ServiceDuo] = map[string]interface{}{
			"api_host_name":   cfg.DuoAPIHostName,
			"integration_key": cfg.DuoIntegrationKey,
			"secret_key":      cfg.DuoSecretKey,
		}
	} else {
		slog.Info("Duo not configured, auditing AWS only")
	}

	var credentials []credaudit.Credential
	clients := make(map[credaudit.Service]credaudit.ActionClient, len(services))

	for _, service := range services {
		provider, err := credaudit.DefaultRegistry.GetOrCreate(ctx, service, configs[service])
		if err != nil {
			return nil, nil, err
		}

		source, err := credaudit.DefaultRegistry.GetSource(service)
		if err != nil {
			return nil, nil, err
		}

		batch, err := source.ListCredentials(ctx)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("listed credentials", "service", service, "count", len(batch))
		credentials = append(credentials, batch...)

		if client, ok := provider.(credaudit.ActionClient); ok {
			clients[service] = client
		}
	}

	return credentials, clients, nil
}

func setupMetrics(cfg *credaudit.Config) (credaudit.Metrics, error) {
	if cfg.MetricsListen == "" {
		return credaudit.NopMetrics{}, nil
	}

	registry := prometheus.NewRegistry()
	collector := credaudit.NewCollector(registry)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", credaudit.MetricsHandler(registry))
		if err := http.ListenAndServe(cfg.MetricsListen, mux); err != nil {
			slog.Error("metrics endpoint failed", "error", err)
		}
	}()

	return collector, nil
}

func printCredentials(credentials []credaudit.Credential, now time.Time) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tUSER\tID\tLINKED ID\tKIND\tSTATE\tLAST USED\tDAYS\t> 2 MONTHS\t> 6 MONTHS")

	for _, c := range credentials {
		linked := c.LinkedID
		if linked == "" {
			linked = "-"
		}

		lastUsed, days, twoMonths, sixMonths := "-", "-", "-", "-"
		if c.LastUsed != nil {
			since := now.Sub(*c.LastUsed)
			lastUsed = c.LastUsed.Format(time.RFC3339)
			days = fmt.Sprintf("%d", int(since.Hours()/24))
			twoMonths = fmt.Sprintf("%t", since > 8*7*24*time.Hour)
			sixMonths = fmt.Sprintf("%t", since > 24*7*24*time.Hour)
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Service, c.UserName, c.ID, linked, c.Kind, c.State,
			lastUsed, days, twoMonths, sixMonths)
	}

	w.Flush()
}

func printInactive(inactive []credaudit.InactiveCredential, spec credaudit.InactiveSpec) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tUSER\tID\tKIND\tSTATE\tACTION\tWHITELISTED")

	for _, ic := range inactive {
		c := ic.Credential
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			c.Service, c.UserName, c.ID, c.Kind, c.State, ic.Action,
			spec.IsWhitelisted(c))
	}

	w.Flush()
}
