package rpc

import "net/url"

// AuthConfig holds per-provider credentials. A credential is scoped to one
// host and must never travel to a foreign endpoint.
type AuthConfig struct {
	Type    string            `json:"type"` // "bearer", "api_key", "custom"
	Token   string            `json:"token"`
	Headers map[string]string `json:"headers"`
	Host    string            `json:"host"` // the only host this credential may reach
}

// AppliesTo reports whether the credential may be attached to endpoint.
// An empty Host pins the credential to nothing and it is never sent.
func (a *AuthConfig) AppliesTo(endpoint string) bool {
	if a == nil {
		return false
	}
	if a.Host == "" {
		return false
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	return u.Hostname() == a.Host
}
