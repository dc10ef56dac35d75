// Package tenant manages multi-tenant authentication configuration on the
// push platform. Tenants are passive value objects: this package validates
// and copies caller input into the wire shape the backend expects and parses
// backend resources back into typed values.
package tenant

import (
	"fmt"
	"regexp"
	"strings"
)

// displayNamePattern: 4-20 characters, letters/digits/hyphens, starting
// with a letter. Enforced locally so bad names fail before a network call.
var displayNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]{3,19}$`)

// Tenant is an immutable snapshot of one tenant's authentication settings.
type Tenant struct {
	ID                    string `json:"id"`
	DisplayName           string `json:"displayName"`
	AllowPasswordSignUp   bool   `json:"allowPasswordSignup"`
	EnableEmailLinkSignIn bool   `json:"enableEmailLinkSignin"`
	EnableAnonymousUsers  bool   `json:"enableAnonymousUser"`
}

// wireTenant is the backend resource representation.
type wireTenant struct {
	Name                  string `json:"name"`
	DisplayName           string `json:"displayName"`
	AllowPasswordSignUp   bool   `json:"allowPasswordSignup"`
	EnableEmailLinkSignIn bool   `json:"enableEmailLinkSignin"`
	EnableAnonymousUsers  bool   `json:"enableAnonymousUser"`
}

// toTenant converts a backend resource, deriving the tenant ID from the
// trailing segment of the resource name "projects/{p}/tenants/{id}".
func (w *wireTenant) toTenant() (*Tenant, error) {
	idx := strings.LastIndex(w.Name, "/")
	if idx < 0 || idx == len(w.Name)-1 {
		return nil, fmt.Errorf("backend returned malformed tenant resource name %q", w.Name)
	}
	return &Tenant{
		ID:                    w.Name[idx+1:],
		DisplayName:           w.DisplayName,
		AllowPasswordSignUp:   w.AllowPasswordSignUp,
		EnableEmailLinkSignIn: w.EnableEmailLinkSignIn,
		EnableAnonymousUsers:  w.EnableAnonymousUsers,
	}, nil
}

// TenantToCreate collects the settings for a new tenant. Setters copy the
// value in; nothing is sent until the manager validates the whole set.
type TenantToCreate struct {
	params map[string]any
}

func (t *TenantToCreate) set(key string, value any) *TenantToCreate {
	if t.params == nil {
		t.params = map[string]any{}
	}
	t.params[key] = value
	return t
}

// DisplayName sets the human-readable tenant name.
func (t *TenantToCreate) DisplayName(name string) *TenantToCreate {
	return t.set("displayName", name)
}

// AllowPasswordSignUp enables or disables email/password sign-in.
func (t *TenantToCreate) AllowPasswordSignUp(allow bool) *TenantToCreate {
	return t.set("allowPasswordSignup", allow)
}

// EnableEmailLinkSignIn enables or disables email-link sign-in.
func (t *TenantToCreate) EnableEmailLinkSignIn(enable bool) *TenantToCreate {
	return t.set("enableEmailLinkSignin", enable)
}

// EnableAnonymousUsers enables or disables anonymous sign-in.
func (t *TenantToCreate) EnableAnonymousUsers(enable bool) *TenantToCreate {
	return t.set("enableAnonymousUser", enable)
}

// validatedRequest returns a defensive copy of the collected parameters
// after validating them.
func (t *TenantToCreate) validatedRequest() (map[string]any, error) {
	if t == nil {
		return nil, fmt.Errorf("tenant specification must not be nil")
	}
	return validateParams(t.params)
}

// TenantToUpdate collects changes to an existing tenant. At least one field
// must be set.
type TenantToUpdate struct {
	params map[string]any
}

func (t *TenantToUpdate) set(key string, value any) *TenantToUpdate {
	if t.params == nil {
		t.params = map[string]any{}
	}
	t.params[key] = value
	return t
}

// DisplayName updates the human-readable tenant name.
func (t *TenantToUpdate) DisplayName(name string) *TenantToUpdate {
	return t.set("displayName", name)
}

// AllowPasswordSignUp updates the email/password sign-in setting.
func (t *TenantToUpdate) AllowPasswordSignUp(allow bool) *TenantToUpdate {
	return t.set("allowPasswordSignup", allow)
}

// EnableEmailLinkSignIn updates the email-link sign-in setting.
func (t *TenantToUpdate) EnableEmailLinkSignIn(enable bool) *TenantToUpdate {
	return t.set("enableEmailLinkSignin", enable)
}

// EnableAnonymousUsers updates the anonymous sign-in setting.
func (t *TenantToUpdate) EnableAnonymousUsers(enable bool) *TenantToUpdate {
	return t.set("enableAnonymousUser", enable)
}

func (t *TenantToUpdate) validatedRequest() (map[string]any, error) {
	if t == nil || len(t.params) == 0 {
		return nil, fmt.Errorf("tenant update must specify at least one field")
	}
	return validateParams(t.params)
}

func validateParams(params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	if name, ok := out["displayName"]; ok {
		s, _ := name.(string)
		if !displayNamePattern.MatchString(s) {
			return nil, fmt.Errorf("display name must be 4-20 letters, digits or hyphens starting with a letter, got %q", s)
		}
	}
	return out, nil
}
