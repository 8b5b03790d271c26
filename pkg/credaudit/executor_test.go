package credaudit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchsec/credaudit/pkg/credaudit"
)

// recordedCall captures one invocation of the fake action client.
type recordedCall struct {
	op   string
	kind credaudit.CredentialKind
	id   string
}

// fakeClient is an ActionClient that records calls and fails for ids
// listed in failing.
type fakeClient struct {
	calls   []recordedCall
	failing map[string]error
}

func (f *fakeClient) Disable(_ context.Context, kind credaudit.CredentialKind, id, _ string) error {
	f.calls = append(f.calls, recordedCall{"disable", kind, id})
	return f.failing[id]
}

func (f *fakeClient) Delete(_ context.Context, kind credaudit.CredentialKind, id, _ string) error {
	f.calls = append(f.calls, recordedCall{"delete", kind, id})
	return f.failing[id]
}

func TestRun_DryRunTouchesNoProvider(t *testing.T) {
	spec := testSpec(t)
	client := &fakeClient{}

	exec := credaudit.NewExecutor(credaudit.WithActionClient(credaudit.ServiceAWS, client))
	stats, err := exec.Run(context.Background(), []credaudit.Credential{
		password("u1", daysAgo(90)),
		password("u2", daysAgo(300)),
		password("u3", daysAgo(5)),
	}, spec, credaudit.RunOptions{Apply: false, Now: now})

	require.NoError(t, err)
	assert.Empty(t, client.calls, "dry-run must not call the provider")
	assert.Equal(t, credaudit.CredentialStats{
		Total: 3, Kept: 1, Disabled: 1, Deleted: 1, Failed: 0,
	}, stats)
}

func TestRun_ApplyRoutesActions(t *testing.T) {
	spec := testSpec(t)
	awsClient := &fakeClient{}
	duoClient := &fakeClient{}

	exec := credaudit.NewExecutor(
		credaudit.WithActionClient(credaudit.ServiceAWS, awsClient),
		credaudit.WithActionClient(credaudit.ServiceDuo, duoClient),
	)
	stats, err := exec.Run(context.Background(), []credaudit.Credential{
		password("u1", daysAgo(90)),
		apiKey("AKIA1", "u2", daysAgo(300)),
		duoUser("d1", daysAgo(90)),
	}, spec, credaudit.RunOptions{Apply: true, Now: now})

	require.NoError(t, err)
	assert.Equal(t, credaudit.CredentialStats{
		Total: 3, Kept: 0, Disabled: 2, Deleted: 1, Failed: 0,
	}, stats)

	// Writes stay within the owning provider.
	assert.Equal(t, []recordedCall{
		{"disable", credaudit.KindPassword, "u1"},
		{"delete", credaudit.KindAPIKey, "AKIA1"},
	}, awsClient.calls)
	assert.Equal(t, []recordedCall{
		{"disable", credaudit.KindTwoFactor, "d1"},
	}, duoClient.calls)
}

func TestRun_SingleFailureDoesNotAbortBatch(t *testing.T) {
	// Scenario: one of three flagged credentials fails; the other two
	// succeed and the run completes.
	spec := testSpec(t)
	client := &fakeClient{failing: map[string]error{
		"u2": credaudit.ErrPermission("access denied").WithService(credaudit.ServiceAWS),
	}}

	exec := credaudit.NewExecutor(credaudit.WithActionClient(credaudit.ServiceAWS, client))
	stats, err := exec.Run(context.Background(), []credaudit.Credential{
		password("u1", daysAgo(90)),
		password("u2", daysAgo(100)),
		password("u3", daysAgo(300)),
	}, spec, credaudit.RunOptions{Apply: true, Now: now})

	require.NoError(t, err)
	assert.Equal(t, credaudit.CredentialStats{
		Total: 3, Kept: 0, Disabled: 1, Deleted: 1, Failed: 1,
	}, stats)
	assert.Len(t, client.calls, 3)
}

func TestRun_WhitelistedCredentialNeverReachesExecutor(t *testing.T) {
	// Scenario: a whitelisted Duo user is flagged but skipped, and is
	// counted as kept.
	spec, err := credaudit.NewInactiveSpec(60, 180, []string{"duo:two_factor:d1"})
	require.NoError(t, err)

	client := &fakeClient{}
	exec := credaudit.NewExecutor(credaudit.WithActionClient(credaudit.ServiceDuo, client))
	stats, err := exec.Run(context.Background(), []credaudit.Credential{
		duoUser("d1", daysAgo(300)),
		duoUser("d2", daysAgo(300)),
	}, spec, credaudit.RunOptions{Apply: true, Now: now})

	require.NoError(t, err)
	assert.Equal(t, []recordedCall{{"delete", credaudit.KindTwoFactor, "d2"}}, client.calls)
	assert.Equal(t, credaudit.CredentialStats{
		Total: 2, Kept: 1, Disabled: 0, Deleted: 1, Failed: 0,
	}, stats)
}

func TestRun_NeverUsedDuoUserIsKept(t *testing.T) {
	// Scenario: Duo two-factor with no last login is kept even when
	// whitelisted.
	spec, err := credaudit.NewInactiveSpec(60, 180, []string{"duo:two_factor:d1"})
	require.NoError(t, err)

	client := &fakeClient{}
	exec := credaudit.NewExecutor(credaudit.WithActionClient(credaudit.ServiceDuo, client))
	stats, err := exec.Run(context.Background(), []credaudit.Credential{
		duoUser("d1", nil),
	}, spec, credaudit.RunOptions{Apply: true, Now: now})

	require.NoError(t, err)
	assert.Empty(t, client.calls)
	assert.Equal(t, credaudit.CredentialStats{Total: 1, Kept: 1}, stats)
}

func TestRun_RejectsInvalidSpec(t *testing.T) {
	exec := credaudit.NewExecutor()
	_, err := exec.Run(context.Background(), nil, credaudit.InactiveSpec{
		DisableThresholdDays: 180,
		DeleteThresholdDays:  60,
	}, credaudit.RunOptions{})

	require.Error(t, err)
	assert.True(t, credaudit.IsCategory(err, credaudit.ErrCategoryValidation))
}

func TestRun_ApplyRequiresClientForActionableService(t *testing.T) {
	spec := testSpec(t)

	exec := credaudit.NewExecutor()
	_, err := exec.Run(context.Background(), []credaudit.Credential{
		password("u1", daysAgo(300)),
	}, spec, credaudit.RunOptions{Apply: true, Now: now})

	require.Error(t, err)
	assert.True(t, credaudit.IsCategory(err, credaudit.ErrCategoryValidation))
	assert.Equal(t, credaudit.ServiceAWS, credaudit.GetErrorService(err))
}

func TestRun_DryRunNeedsNoClients(t *testing.T) {
	spec := testSpec(t)

	exec := credaudit.NewExecutor()
	stats, err := exec.Run(context.Background(), []credaudit.Credential{
		password("u1", daysAgo(300)),
	}, spec, credaudit.RunOptions{Apply: false, Now: now})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)
}

func TestRun_ZeroNowDefaultsToWallClock(t *testing.T) {
	spec := testSpec(t)
	lastUsed := time.Now().AddDate(0, 0, -300)

	exec := credaudit.NewExecutor()
	stats, err := exec.Run(context.Background(), []credaudit.Credential{
		password("u1", &lastUsed),
	}, spec, credaudit.RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)
}
