// Package credaudit provides core types and interfaces for credential
// inactivity auditing.
//
// This package defines the normalized credential model, the inactivity
// classification rules, and the execution machinery that disables or
// deletes stale credentials across identity providers.
package credaudit

import (
	"fmt"
	"time"
)

// Service identifies the identity provider owning a credential.
type Service string

const (
	ServiceAWS Service = "aws"
	ServiceDuo Service = "duo"
)

// CredentialKind identifies the type of a credential.
type CredentialKind string

const (
	// KindPassword is an interactive login credential (e.g. IAM console password).
	KindPassword CredentialKind = "password"
	// KindAPIKey is a programmatic access credential (e.g. IAM access key).
	KindAPIKey CredentialKind = "api_key"
	// KindTwoFactor is a second-factor enrollment (e.g. Duo user).
	KindTwoFactor CredentialKind = "two_factor"
)

// CredentialState is the provider-reported status of a credential at read time.
type CredentialState string

const (
	StateEnabled  CredentialState = "enabled"
	StateDisabled CredentialState = "disabled"
	StateUnknown  CredentialState = "unknown"
)

// Credential is the provider-agnostic representation of a single credential.
// Instances are built by provider sources and flow unchanged through
// classification, linkage resolution, and execution.
type Credential struct {
	// Service is the provider owning this credential.
	Service Service

	// ID is the provider-scoped unique identifier (IAM user id, access
	// key id, Duo user id). Unique within a Service.
	ID string

	// UserName is the human-readable owner. For AWS operations this is
	// also the IAM user name the provider API acts on.
	UserName string

	// Kind is the credential type.
	Kind CredentialKind

	// State is the provider-reported status at read time.
	State CredentialState

	// LastUsed is the last observed use. Nil means "never observed used";
	// it is data, not an error.
	LastUsed *time.Time

	// LinkedID links an api key to the identity owning it (the IAM user
	// id, i.e. the id of the matching password credential). Passwords and
	// two-factor enrollments carry no link. The referent may be absent
	// from the batch; linkage then degrades to "no link found".
	LinkedID string
}

// IsAWS reports whether the credential belongs to AWS.
func (c Credential) IsAWS() bool { return c.Service == ServiceAWS }

// IsDuo reports whether the credential belongs to Duo.
func (c Credential) IsDuo() bool { return c.Service == ServiceDuo }

// IsPassword reports whether the credential is an interactive password.
func (c Credential) IsPassword() bool { return c.Kind == KindPassword }

// IsAPIKey reports whether the credential is a programmatic key.
func (c Credential) IsAPIKey() bool { return c.Kind == KindAPIKey }

// IsTwoFactor reports whether the credential is a second-factor enrollment.
func (c Credential) IsTwoFactor() bool { return c.Kind == KindTwoFactor }

// WhitelistKey returns the canonical whitelist key for this credential,
// in the form "{service}:{kind}:{id}".
func (c Credential) WhitelistKey() string {
	return fmt.Sprintf("%s:%s:%s", c.Service, c.Kind, c.ID)
}

// Action is the lifecycle action resolved for a credential. Actions are
// ordered by severity: Keep < Disable < Delete. The linkage resolver
// relies on this ordering; "more lenient" means closer to ActionKeep.
type Action int

const (
	ActionKeep Action = iota
	ActionDisable
	ActionDelete
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case ActionKeep:
		return "keep"
	case ActionDisable:
		return "disable"
	case ActionDelete:
		return "delete"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// InactiveCredential pairs a credential with its final resolved action.
// Only credentials whose resolved action is not Keep are materialized.
type InactiveCredential struct {
	Credential Credential
	Action     Action
}

// CredentialStats is the aggregate result of one audit run. It is created
// fresh per run and never persisted; the next scheduled run re-derives
// everything from fresh provider reads.
type CredentialStats struct {
	// Total is the number of credentials considered.
	Total int
	// Kept counts credentials left untouched, including whitelisted ones.
	Kept int
	// Disabled counts credentials disabled (or that would be, in dry-run).
	Disabled int
	// Deleted counts credentials deleted (or that would be, in dry-run).
	Deleted int
	// Failed counts provider calls that failed. Always zero in dry-run.
	Failed int
}
