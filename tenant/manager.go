package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/oauth2"

	"github.com/tinywideclouds/go-push-admin/internal/transport"
	"github.com/tinywideclouds/go-push-admin/pkg/apierror"
)

const defaultEndpoint = "https://push.tinywideclouds.dev"

// Source is the read/write surface for tenant configuration. *Manager is
// the canonical implementation; decorators (caching) wrap it.
type Source interface {
	Tenant(ctx context.Context, id string) (*Tenant, error)
	CreateTenant(ctx context.Context, spec *TenantToCreate) (*Tenant, error)
	UpdateTenant(ctx context.Context, id string, spec *TenantToUpdate) (*Tenant, error)
	DeleteTenant(ctx context.Context, id string) error
}

// Config carries the per-application binding for the tenant manager.
type Config struct {
	ProjectID string
	// Endpoint overrides the backend base URL. Leave empty for production.
	Endpoint    string
	TokenSource oauth2.TokenSource
	// HTTPClient overrides the HTTP client. Used in tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Manager talks to the tenant configuration endpoints. Construct once per
// application binding; safe for concurrent use.
type Manager struct {
	projectID string
	endpoint  string
	client    *transport.Client
	logger    *slog.Logger
}

var _ Source = (*Manager)(nil)

// NewManager creates a tenant manager over its own transport client.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("tenant: project ID is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "TenantManager")

	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Manager{
		projectID: cfg.ProjectID,
		endpoint:  endpoint,
		client:    transport.NewClientWithHTTP(hc, cfg.TokenSource, nil, logger),
		logger:    logger,
	}, nil
}

func (m *Manager) tenantsURL(id string) string {
	base := fmt.Sprintf("%s/v2/projects/%s/tenants", m.endpoint, m.projectID)
	if id == "" {
		return base
	}
	return base + "/" + id
}

// Tenant fetches one tenant's authentication configuration.
func (m *Manager) Tenant(ctx context.Context, id string) (*Tenant, error) {
	if id == "" {
		return nil, apierror.New(apierror.InvalidArgument, "tenant ID must not be empty")
	}
	return m.roundTrip(ctx, http.MethodGet, m.tenantsURL(id), nil)
}

// CreateTenant provisions a new tenant from a validated specification.
func (m *Manager) CreateTenant(ctx context.Context, spec *TenantToCreate) (*Tenant, error) {
	payload, err := spec.validatedRequest()
	if err != nil {
		return nil, apierror.New(apierror.InvalidArgument, err.Error())
	}
	return m.roundTrip(ctx, http.MethodPost, m.tenantsURL(""), payload)
}

// UpdateTenant applies a partial update. The update mask is derived from the
// fields the caller actually set.
func (m *Manager) UpdateTenant(ctx context.Context, id string, spec *TenantToUpdate) (*Tenant, error) {
	if id == "" {
		return nil, apierror.New(apierror.InvalidArgument, "tenant ID must not be empty")
	}
	payload, err := spec.validatedRequest()
	if err != nil {
		return nil, apierror.New(apierror.InvalidArgument, err.Error())
	}
	mask := make([]string, 0, len(payload))
	for k := range payload {
		mask = append(mask, k)
	}
	sort.Strings(mask)
	url := fmt.Sprintf("%s?updateMask=%s", m.tenantsURL(id), strings.Join(mask, ","))
	return m.roundTrip(ctx, http.MethodPatch, url, payload)
}

// DeleteTenant removes a tenant and all of its configuration.
func (m *Manager) DeleteTenant(ctx context.Context, id string) error {
	if id == "" {
		return apierror.New(apierror.InvalidArgument, "tenant ID must not be empty")
	}
	_, err := m.client.Do(ctx, &transport.Request{Method: http.MethodDelete, URL: m.tenantsURL(id)})
	if err != nil {
		return normalize(err)
	}
	return nil
}

func (m *Manager) roundTrip(ctx context.Context, method, url string, body any) (*Tenant, error) {
	resp, err := m.client.Do(ctx, &transport.Request{Method: method, URL: url, Body: body})
	if err != nil {
		return nil, normalize(err)
	}
	var wire wireTenant
	if err := resp.JSON(&wire); err != nil {
		return nil, apierror.New(apierror.Unknown, "backend returned a malformed tenant resource")
	}
	t, err := wire.toTenant()
	if err != nil {
		return nil, apierror.New(apierror.Unknown, err.Error())
	}
	return t, nil
}

func normalize(err error) *apierror.Error {
	var terr *transport.Error
	if errors.As(err, &terr) && terr.Response != nil {
		return apierror.FromResponse(terr.Response.Status, terr.Response.Body)
	}
	return apierror.FromError(err)
}
