package credaudit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchsec/credaudit/pkg/credaudit"
)

var now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(days int) *time.Time {
	t := now.AddDate(0, 0, -days)
	return &t
}

func testSpec(t *testing.T) credaudit.InactiveSpec {
	t.Helper()
	spec, err := credaudit.NewInactiveSpec(60, 180, nil)
	require.NoError(t, err)
	return spec
}

func password(id string, lastUsed *time.Time) credaudit.Credential {
	return credaudit.Credential{
		Service:  credaudit.ServiceAWS,
		ID:       id,
		UserName: "user-" + id,
		Kind:     credaudit.KindPassword,
		State:    credaudit.StateUnknown,
		LastUsed: lastUsed,
	}
}

func apiKey(id, linkedID string, lastUsed *time.Time) credaudit.Credential {
	return credaudit.Credential{
		Service:  credaudit.ServiceAWS,
		ID:       id,
		UserName: "user-" + linkedID,
		Kind:     credaudit.KindAPIKey,
		State:    credaudit.StateEnabled,
		LastUsed: lastUsed,
		LinkedID: linkedID,
	}
}

func duoUser(id string, lastUsed *time.Time) credaudit.Credential {
	return credaudit.Credential{
		Service:  credaudit.ServiceDuo,
		ID:       id,
		UserName: "user-" + id,
		Kind:     credaudit.KindTwoFactor,
		State:    credaudit.StateEnabled,
		LastUsed: lastUsed,
	}
}

func TestClassify_NeverUsedIsKept(t *testing.T) {
	spec := testSpec(t)

	got := credaudit.Classify(password("u1", nil), spec, now)

	assert.Equal(t, credaudit.ActionKeep, got)
}

func TestClassify_Boundaries(t *testing.T) {
	spec := testSpec(t)

	tests := []struct {
		name string
		days int
		want credaudit.Action
	}{
		{"fresh", 1, credaudit.ActionKeep},
		{"exactly at disable threshold", 60, credaudit.ActionKeep},
		{"one day past disable threshold", 61, credaudit.ActionDisable},
		{"exactly at delete threshold", 180, credaudit.ActionDisable},
		{"one day past delete threshold", 181, credaudit.ActionDelete},
		{"long stale", 400, credaudit.ActionDelete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := credaudit.Classify(password("u1", daysAgo(tt.days)), spec, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Monotonicity(t *testing.T) {
	spec := testSpec(t)

	previous := credaudit.ActionKeep
	for days := 0; days <= 365; days++ {
		got := credaudit.Classify(password("u1", daysAgo(days)), spec, now)
		assert.GreaterOrEqual(t, got, previous, "severity must not decrease at %d days", days)
		previous = got
	}
}

func TestIdentifyInactive_UnlinkedPassword(t *testing.T) {
	// Scenario: password unused for 200 days, no linked key.
	spec := testSpec(t)

	inactive := credaudit.IdentifyInactive([]credaudit.Credential{
		password("u1", daysAgo(200)),
	}, spec, now)

	require.Len(t, inactive, 1)
	assert.Equal(t, credaudit.ActionDelete, inactive[0].Action)
	assert.Equal(t, "u1", inactive[0].Credential.ID)
}

func TestIdentifyInactive_ActiveKeyKeepsStalePassword(t *testing.T) {
	// Scenario: password unused for 200 days, but a key of the same
	// account was used 5 days ago. The account is driven through the
	// API; keep it.
	spec := testSpec(t)

	inactive := credaudit.IdentifyInactive([]credaudit.Credential{
		password("u1", daysAgo(200)),
		apiKey("AKIA1", "u1", daysAgo(5)),
	}, spec, now)

	assert.Empty(t, inactive)
}

func TestIdentifyInactive_LenientSignalWins(t *testing.T) {
	// Scenario: password at 90 days (disable), key at 200 days (delete).
	// The key's staleness must not escalate the password past its own
	// classification.
	spec := testSpec(t)

	inactive := credaudit.IdentifyInactive([]credaudit.Credential{
		password("u1", daysAgo(90)),
		apiKey("AKIA1", "u1", daysAgo(200)),
	}, spec, now)

	require.Len(t, inactive, 2)
	byID := map[string]credaudit.Action{}
	for _, ic := range inactive {
		byID[ic.Credential.ID] = ic.Action
	}
	assert.Equal(t, credaudit.ActionDisable, byID["u1"])
	assert.Equal(t, credaudit.ActionDelete, byID["AKIA1"])
}

func TestIdentifyInactive_KeepDominates(t *testing.T) {
	spec := testSpec(t)

	tests := []struct {
		name     string
		password *time.Time
		key      *time.Time
	}{
		{"stale password, fresh key", daysAgo(400), daysAgo(1)},
		{"fresh password, stale key", daysAgo(1), daysAgo(400)},
		{"stale password, never-used key", daysAgo(400), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inactive := credaudit.IdentifyInactive([]credaudit.Credential{
				password("u1", tt.password),
				apiKey("AKIA1", "u1", tt.key),
			}, spec, now)

			for _, ic := range inactive {
				assert.NotEqual(t, "u1", ic.Credential.ID, "password must be kept when either signal says keep")
			}
		})
	}
}

func TestIdentifyInactive_MultipleKeys(t *testing.T) {
	// One active key among several stale ones keeps the password; the
	// stale keys are still flagged individually.
	spec := testSpec(t)

	inactive := credaudit.IdentifyInactive([]credaudit.Credential{
		password("u1", daysAgo(300)),
		apiKey("AKIA1", "u1", daysAgo(300)),
		apiKey("AKIA2", "u1", daysAgo(3)),
		apiKey("AKIA3", "u1", daysAgo(100)),
	}, spec, now)

	byID := map[string]credaudit.Action{}
	for _, ic := range inactive {
		byID[ic.Credential.ID] = ic.Action
	}

	assert.NotContains(t, byID, "u1")
	assert.Equal(t, credaudit.ActionDelete, byID["AKIA1"])
	assert.NotContains(t, byID, "AKIA2")
	assert.Equal(t, credaudit.ActionDisable, byID["AKIA3"])
}

func TestIdentifyInactive_LinkReferentAbsent(t *testing.T) {
	// A key may link to an identity that is not in the batch; the link
	// then simply finds nothing.
	spec := testSpec(t)

	inactive := credaudit.IdentifyInactive([]credaudit.Credential{
		apiKey("AKIA1", "ghost", daysAgo(200)),
	}, spec, now)

	require.Len(t, inactive, 1)
	assert.Equal(t, credaudit.ActionDelete, inactive[0].Action)
}

func TestIdentifyInactive_DuoIsIndependent(t *testing.T) {
	spec := testSpec(t)

	inactive := credaudit.IdentifyInactive([]credaudit.Credential{
		duoUser("d1", nil),
		duoUser("d2", daysAgo(100)),
		duoUser("d3", daysAgo(250)),
	}, spec, now)

	byID := map[string]credaudit.Action{}
	for _, ic := range inactive {
		byID[ic.Credential.ID] = ic.Action
	}

	assert.NotContains(t, byID, "d1")
	assert.Equal(t, credaudit.ActionDisable, byID["d2"])
	assert.Equal(t, credaudit.ActionDelete, byID["d3"])
}

func TestIdentifyInactive_ContinuesAfterKeepCombination(t *testing.T) {
	// A keep-resolving linked pair must not stop evaluation of later
	// passwords in the batch.
	spec := testSpec(t)

	inactive := credaudit.IdentifyInactive([]credaudit.Credential{
		password("u1", daysAgo(300)),
		apiKey("AKIA1", "u1", daysAgo(1)),
		password("u2", daysAgo(300)),
	}, spec, now)

	require.Len(t, inactive, 1)
	assert.Equal(t, "u2", inactive[0].Credential.ID)
	assert.Equal(t, credaudit.ActionDelete, inactive[0].Action)
}
