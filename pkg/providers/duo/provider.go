// Package duo provides the Duo credential source and action client,
// backed by the Duo Admin API.
package duo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	duoapi "github.com/duosecurity/duo_api_golang"

	"github.com/watchsec/credaudit/pkg/credaudit"
)

const usersPath = "/admin/v1/users"

// caller is the subset of *duoapi.DuoApi the provider uses, for testing.
type caller interface {
	SignedCall(method string, uri string, params url.Values, options ...duoapi.DuoApiOption) (*http.Response, []byte, error)
}

// Provider implements credaudit.Provider, credaudit.CredentialSource and
// credaudit.ActionClient for Duo two-factor enrollments.
type Provider struct {
	api caller
}

// ProviderOption configures the Provider.
type ProviderOption func(*Provider)

// WithAPI sets the signed-call transport.
func WithAPI(api caller) ProviderOption {
	return func(p *Provider) {
		p.api = api
	}
}

// New creates a Duo provider for the given Admin API host and
// integration credentials.
func New(hostname, integrationKey, secretKey string, opts ...ProviderOption) *Provider {
	p := &Provider{
		api: duoapi.NewDuoApi(integrationKey, secretKey, hostname, "credaudit",
			duoapi.SetTimeout(10*time.Second)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Service implements credaudit.Provider.
func (p *Provider) Service() credaudit.Service {
	return credaudit.ServiceDuo
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

// user is the subset of the Duo Admin API user object the audit needs.
type user struct {
	UserID     string  `json:"user_id"`
	Username   string  `json:"username"`
	RealName   *string `json:"realname"`
	Email      string  `json:"email"`
	IsEnrolled bool    `json:"is_enrolled"`
	Status     string  `json:"status"`
	LastLogin  *int64  `json:"last_login"`
}

// envelope is the generic Duo response wrapper. Stat is "OK" or "FAIL";
// on failure Code, Message and MessageDetail describe the error.
type envelope struct {
	Stat          string          `json:"stat"`
	Code          int             `json:"code"`
	Message       string          `json:"message"`
	MessageDetail string          `json:"message_detail"`
	Response      json.RawMessage `json:"response"`
	Metadata      struct {
		NextOffset *int `json:"next_offset"`
	} `json:"metadata"`
}

// ListCredentials implements credaudit.CredentialSource. Every Duo user
// becomes one two-factor credential; last_login is the last-used signal.
func (p *Provider) ListCredentials(ctx context.Context) ([]credaudit.Credential, error) {
	var credentials []credaudit.Credential

	offset := 0
	for {
		params := url.Values{}
		params.Set("limit", "100")
		params.Set("offset", fmt.Sprintf("%d", offset))

		env, err := p.call(ctx, http.MethodGet, usersPath, params, "list_users")
		if err != nil {
			return nil, err
		}

		var users []user
		if err := json.Unmarshal(env.Response, &users); err != nil {
			return nil, credaudit.ErrInternal("failed to decode Duo users").
				WithCause(err).
				WithService(credaudit.ServiceDuo).
				WithOperation("list_users")
		}

		for _, u := range users {
			credentials = append(credentials, userCredential(u))
		}

		if env.Metadata.NextOffset == nil {
			break
		}
		offset = *env.Metadata.NextOffset
	}

	return credentials, nil
}

func userCredential(u user) credaudit.Credential {
	name := "-"
	if u.RealName != nil && *u.RealName != "" {
		name = *u.RealName
	}

	var state credaudit.CredentialState
	switch u.Status {
	case "active", "bypass":
		state = credaudit.StateEnabled
	case "disabled", "locked out", "pending deletion":
		state = credaudit.StateDisabled
	default:
		state = credaudit.StateUnknown
	}

	c := credaudit.Credential{
		Service:  credaudit.ServiceDuo,
		ID:       u.UserID,
		UserName: name,
		Kind:     credaudit.KindTwoFactor,
		State:    state,
	}
	if u.LastLogin != nil {
		t := time.Unix(*u.LastLogin, 0).UTC()
		c.LastUsed = &t
	}
	return c
}

// Disable implements credaudit.ActionClient by setting the Duo user's
// status to disabled. Disabling an already-disabled user succeeds.
func (p *Provider) Disable(ctx context.Context, kind credaudit.CredentialKind, id, owner string) error {
	if kind != credaudit.KindTwoFactor {
		return credaudit.ErrValidation("Duo cannot disable credential kind " + string(kind)).
			WithService(credaudit.ServiceDuo).
			WithOperation("disable").
			WithCredential(id)
	}

	params := url.Values{}
	params.Set("status", "disabled")
	_, err := p.call(ctx, http.MethodPost, usersPath+"/"+id, params, "disable")
	return err
}

// Delete implements credaudit.ActionClient by deleting the Duo user.
func (p *Provider) Delete(ctx context.Context, kind credaudit.CredentialKind, id, owner string) error {
	if kind != credaudit.KindTwoFactor {
		return credaudit.ErrValidation("Duo cannot delete credential kind " + string(kind)).
			WithService(credaudit.ServiceDuo).
			WithOperation("delete").
			WithCredential(id)
	}

	_, err := p.call(ctx, http.MethodDelete, usersPath+"/"+id, url.Values{}, "delete")
	return err
}

func (p *Provider) call(ctx context.Context, method, path string, params url.Values, operation string) (*envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, credaudit.ErrNetwork("request cancelled").
			WithCause(err).
			WithService(credaudit.ServiceDuo).
			WithOperation(operation)
	}

	resp, body, err := p.api.SignedCall(method, path, params)
	if err != nil {
		return nil, credaudit.ErrNetwork("Duo Admin API call failed").
			WithCause(err).
			WithService(credaudit.ServiceDuo).
			WithOperation(operation)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, credaudit.ErrInternal("failed to decode Duo response").
			WithCause(err).
			WithService(credaudit.ServiceDuo).
			WithOperation(operation)
	}

	if env.Stat != "OK" {
		e := credaudit.NewError(categoryForStatus(resp), fmt.Sprintf(
			"Duo Admin API returned %s (code %d): %s, %s",
			env.Stat, env.Code, env.Message, env.MessageDetail)).
			WithService(credaudit.ServiceDuo).
			WithOperation(operation)
		return nil, e
	}

	return &env, nil
}

func categoryForStatus(resp *http.Response) credaudit.ErrorCategory {
	if resp == nil {
		return credaudit.ErrCategoryInternal
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return credaudit.ErrCategoryAuth
	case resp.StatusCode == http.StatusForbidden:
		return credaudit.ErrCategoryPermission
	case resp.StatusCode == http.StatusNotFound:
		return credaudit.ErrCategoryNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return credaudit.ErrCategoryRateLimit
	default:
		return credaudit.ErrCategoryInternal
	}
}

// Factory creates the Duo provider from the standard Duo environment
// variables via the registry.
type Factory struct{}

// Create implements credaudit.ProviderFactory. Expected config keys:
// api_host_name, integration_key, secret_key.
func (Factory) Create(_ context.Context, config map[string]interface{}) (credaudit.Provider, error) {
	hostname, _ := config["api_host_name"].(string)
	integrationKey, _ := config["integration_key"].(string)
	secretKey, _ := config["secret_key"].(string)

	if hostname == "" || integrationKey == "" || secretKey == "" {
		return nil, credaudit.ErrValidation("Duo provider requires api_host_name, integration_key and secret_key").
			WithService(credaudit.ServiceDuo)
	}

	return New(hostname, integrationKey, secretKey), nil
}

func init() {
	// Register with default registry
	credaudit.RegisterFactory(credaudit.ServiceDuo, Factory{})
}
