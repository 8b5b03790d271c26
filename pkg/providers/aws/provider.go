// Package aws provides the AWS IAM credential source and action client.
package aws

import (
	"context"
	"errors"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/watchsec/credaudit/pkg/credaudit"
)

// API abstracts the IAM operations the provider uses, for testing.
// *iam.Client satisfies it.
type API interface {
	ListUsers(ctx context.Context, input *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error)
	ListAccessKeys(ctx context.Context, input *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	GetAccessKeyLastUsed(ctx context.Context, input *iam.GetAccessKeyLastUsedInput, optFns ...func(*iam.Options)) (*iam.GetAccessKeyLastUsedOutput, error)
	UpdateAccessKey(ctx context.Context, input *iam.UpdateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.UpdateAccessKeyOutput, error)
	DeleteAccessKey(ctx context.Context, input *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error)
	DeleteLoginProfile(ctx context.Context, input *iam.DeleteLoginProfileInput, optFns ...func(*iam.Options)) (*iam.DeleteLoginProfileOutput, error)
	DeleteUser(ctx context.Context, input *iam.DeleteUserInput, optFns ...func(*iam.Options)) (*iam.DeleteUserOutput, error)
}

// Provider implements credaudit.Provider, credaudit.CredentialSource and
// credaudit.ActionClient for AWS IAM.
type Provider struct {
	client API
}

// ProviderOption configures the Provider.
type ProviderOption func(*Provider)

// WithClient sets the IAM client.
func WithClient(client API) ProviderOption {
	return func(p *Provider) {
		p.client = client
	}
}

// New creates a new AWS provider.
func New(opts ...ProviderOption) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig creates an AWS provider backed by a real IAM client,
// using the default credential chain.
func NewFromConfig(ctx context.Context) (*Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, credaudit.ErrAuth("failed to load AWS configuration").
			WithCause(err).
			WithService(credaudit.ServiceAWS)
	}
	return New(WithClient(iam.NewFromConfig(cfg))), nil
}

// Service implements credaudit.Provider.
func (p *Provider) Service() credaudit.Service {
	return credaudit.ServiceAWS
}

// Capabilities implements credaudit.Provider.
func (p *Provider) Capabilities() []credaudit.Capability {
	return []credaudit.Capability{
		credaudit.CapabilitySource,
		credaudit.CapabilityDisable,
		credaudit.CapabilityDelete,
	}
}

// HasCapability implements credaudit.Provider.
func (p *Provider) HasCapability(cap credaudit.Capability) bool {
	for _, c := range p.Capabilities() {
		if c == cap {
			return true
		}
	}
	return false
}

// ListCredentials implements credaudit.CredentialSource. It returns one
// password credential per IAM user plus one api key credential per
// access key, each key linked to its owning user's id.
//
// A failed last-used lookup fails the listing. Discarding such failures
// would hide inactive credentials from the audit.
func (p *Provider) ListCredentials(ctx context.Context) ([]credaudit.Credential, error) {
	var credentials []credaudit.Credential

	users := iam.NewListUsersPaginator(p.client, &iam.ListUsersInput{})
	for users.HasMorePages() {
		page, err := users.NextPage(ctx)
		if err != nil {
			return nil, credaudit.ErrNetwork("failed to list IAM users").
				WithCause(err).
				WithService(credaudit.ServiceAWS).
				WithOperation("list_users")
		}

		for _, user := range page.Users {
			credentials = append(credentials, userCredential(user))

			keys, err := p.listAccessKeyCredentials(ctx, user)
			if err != nil {
				return nil, err
			}
			credentials = append(credentials, keys...)
		}
	}

	return credentials, nil
}

func (p *Provider) listAccessKeyCredentials(ctx context.Context, user types.User) ([]credaudit.Credential, error) {
	var credentials []credaudit.Credential

	keys := iam.NewListAccessKeysPaginator(p.client, &iam.ListAccessKeysInput{
		UserName: user.UserName,
	})
	for keys.HasMorePages() {
		page, err := keys.NextPage(ctx)
		if err != nil {
			return nil, credaudit.ErrNetwork("failed to list access keys").
				WithCause(err).
				WithService(credaudit.ServiceAWS).
				WithOperation("list_access_keys").
				WithCredential(awssdk.ToString(user.UserId))
		}

		for _, meta := range page.AccessKeyMetadata {
			keyID := awssdk.ToString(meta.AccessKeyId)

			lastUsed, err := p.client.GetAccessKeyLastUsed(ctx, &iam.GetAccessKeyLastUsedInput{
				AccessKeyId: meta.AccessKeyId,
			})
			if err != nil {
				return nil, credaudit.ErrNetwork("failed to get access key last used").
					WithCause(err).
					WithService(credaudit.ServiceAWS).
					WithOperation("get_access_key_last_used").
					WithCredential(keyID)
			}

			credentials = append(credentials, accessKeyCredential(user, meta, lastUsed))
		}
	}

	return credentials, nil
}

func userCredential(user types.User) credaudit.Credential {
	return credaudit.Credential{
		Service:  credaudit.ServiceAWS,
		ID:       awssdk.ToString(user.UserId),
		UserName: awssdk.ToString(user.UserName),
		Kind:     credaudit.KindPassword,
		State:    credaudit.StateUnknown,
		LastUsed: user.PasswordLastUsed,
	}
}

func accessKeyCredential(user types.User, meta types.AccessKeyMetadata, lastUsed *iam.GetAccessKeyLastUsedOutput) credaudit.Credential {
	state := credaudit.StateUnknown
	switch meta.Status {
	case types.StatusTypeActive:
		state = credaudit.StateEnabled
	case types.StatusTypeInactive:
		state = credaudit.StateDisabled
	}

	c := credaudit.Credential{
		Service:  credaudit.ServiceAWS,
		ID:       awssdk.ToString(meta.AccessKeyId),
		UserName: awssdk.ToString(user.UserName),
		Kind:     credaudit.KindAPIKey,
		State:    state,
		LinkedID: awssdk.ToString(user.UserId),
	}

	// A key that was never used has no last-used date. That is data,
	// not an error.
	if lastUsed != nil && lastUsed.AccessKeyLastUsed != nil && lastUsed.AccessKeyLastUsed.LastUsedDate != nil {
		c.LastUsed = lastUsed.AccessKeyLastUsed.LastUsedDate
	}

	return c
}

// Disable implements credaudit.ActionClient. For an api key it marks the
// key inactive; for a password it removes the console login profile.
// Both operations are idempotent: an already-disabled target succeeds.
func (p *Provider) Disable(ctx context.Context, kind credaudit.CredentialKind, id, owner string) error {
	switch kind {
	case credaudit.KindAPIKey:
		_, err := p.client.UpdateAccessKey(ctx, &iam.UpdateAccessKeyInput{
			AccessKeyId: awssdk.String(id),
			UserName:    awssdk.String(owner),
			Status:      types.StatusTypeInactive,
		})
		if err != nil {
			return credaudit.ErrPermission("failed to deactivate access key").
				WithCause(err).
				WithService(credaudit.ServiceAWS).
				WithOperation("disable").
				WithCredential(id)
		}
		return nil

	case credaudit.KindPassword:
		_, err := p.client.DeleteLoginProfile(ctx, &iam.DeleteLoginProfileInput{
			UserName: awssdk.String(owner),
		})
		if err != nil && !isNoSuchEntity(err) {
			return credaudit.ErrPermission("failed to delete login profile").
				WithCause(err).
				WithService(credaudit.ServiceAWS).
				WithOperation("disable").
				WithCredential(id)
		}
		return nil

	default:
		return credaudit.ErrValidation("AWS cannot disable credential kind " + string(kind)).
			WithService(credaudit.ServiceAWS).
			WithOperation("disable").
			WithCredential(id)
	}
}

// Delete implements credaudit.ActionClient. For an api key it deletes
// the key; for a password it deletes the IAM user, removing the login
// profile first. Deleting an already-deleted target is reported as an
// error and counted by the caller; the next run will simply not see the
// credential anymore.
func (p *Provider) Delete(ctx context.Context, kind credaudit.CredentialKind, id, owner string) error {
	switch kind {
	case credaudit.KindAPIKey:
		_, err := p.client.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{
			AccessKeyId: awssdk.String(id),
			UserName:    awssdk.String(owner),
		})
		if err != nil {
			return credaudit.ErrPermission("failed to delete access key").
				WithCause(err).
				WithService(credaudit.ServiceAWS).
				WithOperation("delete").
				WithCredential(id)
		}
		return nil

	case credaudit.KindPassword:
		// DeleteUser fails while a login profile exists.
		_, err := p.client.DeleteLoginProfile(ctx, &iam.DeleteLoginProfileInput{
			UserName: awssdk.String(owner),
		})
		if err != nil && !isNoSuchEntity(err) {
			return credaudit.ErrPermission("failed to delete login profile").
				WithCause(err).
				WithService(credaudit.ServiceAWS).
				WithOperation("delete").
				WithCredential(id)
		}

		_, err = p.client.DeleteUser(ctx, &iam.DeleteUserInput{
			UserName: awssdk.String(owner),
		})
		if err != nil {
			return credaudit.ErrPermission("failed to delete IAM user").
				WithCause(err).
				WithService(credaudit.ServiceAWS).
				WithOperation("delete").
				WithCredential(id)
		}
		return nil

	default:
		return credaudit.ErrValidation("AWS cannot delete credential kind " + string(kind)).
			WithService(credaudit.ServiceAWS).
			WithOperation("delete").
			WithCredential(id)
	}
}

func isNoSuchEntity(err error) bool {
	var nse *types.NoSuchEntityException
	return errors.As(err, &nse)
}

// Factory creates the AWS provider from the default credential chain.
type Factory struct{}

// Create implements credaudit.ProviderFactory.
func (Factory) Create(ctx context.Context, _ map[string]interface{}) (credaudit.Provider, error) {
	return NewFromConfig(ctx)
}

func init() {
	// Register with default registry
	credaudit.RegisterFactory(credaudit.ServiceAWS, Factory{})
}
