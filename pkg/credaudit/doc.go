// Package credaudit audits credentials for inactivity.
//
// # Overview
//
// credaudit normalizes credentials from identity providers (AWS IAM
// passwords and access keys, Duo two-factor enrollments), classifies
// each by how long it has gone unused, resolves a single lifecycle
// action per credential while honoring links between a password and the
// access keys of the same account, and either reports or executes the
// resulting actions.
//
// # Core Concepts
//
// ## Credentials
//
// A Credential is the provider-agnostic value type every provider source
// produces. An api key carries a LinkedID naming the identity (IAM user
// id) it belongs to; that identity's password credential shares the id.
//
// ## Classification and linkage
//
// Classify maps last-used age to Keep, Disable or Delete under an
// InactiveSpec. IdentifyInactive then resolves one action per
// credential: passwords combine their own classification with the most
// lenient action among the keys linking to them, so an account driven
// purely through API usage is not penalized for a stale console
// password. Keep dominates every combination.
//
// ## Execution
//
// The Executor applies resolved actions through per-service
// ActionClients. In dry-run mode a no-op logging client is substituted;
// the control flow is identical either way. Single-credential failures
// are counted, logged and skipped; they never abort the batch. There is
// no retry: the next scheduled run re-derives everything from fresh
// provider reads.
//
// # Usage
//
//	spec, err := credaudit.NewInactiveSpec(60, 180, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	exec := credaudit.NewExecutor(
//	    credaudit.WithActionClient(credaudit.ServiceAWS, awsClient),
//	)
//	stats, err := exec.Run(ctx, credentials, spec, credaudit.RunOptions{Apply: false})
//
// # Extension
//
// New providers implement Provider together with CredentialSource and
// ActionClient, and register a factory via credaudit.RegisterFactory()
// from an init() function.
package credaudit
