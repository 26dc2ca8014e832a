// Package auth provides http.RoundTrippers for the cluster's authentication
// schemes.
package auth

import (
	"encoding/base64"
	"errors"
	"net/http"
)

var ErrConflictingCredentials = errors.New("auth: only one of api key, basic or bearer credentials may be set")

// APIKeyTransport sends "Authorization: ApiKey <credential>". When ID is set
// the credential is base64(ID:Key); otherwise Key is sent as already encoded.
type APIKeyTransport struct {
	ID   string
	Key  string
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *APIKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Key == "" {
		return base(t.Base).RoundTrip(req)
	}
	credential := t.Key
	if t.ID != "" {
		credential = base64.StdEncoding.EncodeToString([]byte(t.ID + ":" + t.Key))
	}
	return withAuthorization(req, "ApiKey "+credential, t.Base)
}

// BasicTransport sends HTTP basic credentials.
type BasicTransport struct {
	Username string
	Password string
	Base     http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *BasicTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Username == "" {
		return base(t.Base).RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.Username, t.Password)
	return base(t.Base).RoundTrip(clone)
}

// BearerTokenTransport sends a bearer token, e.g. one from the token API.
type BearerTokenTransport struct {
	Token string
	Base  http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *BearerTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Token == "" {
		return base(t.Base).RoundTrip(req)
	}
	return withAuthorization(req, "Bearer "+t.Token, t.Base)
}

// Credentials selects one authentication scheme. The zero value means none.
type Credentials struct {
	APIKeyID string `yaml:"api_key_id"`
	APIKey   string `yaml:"api_key"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
}

// Transport wraps next with the scheme c describes. It returns next
// unchanged for empty credentials.
func (c Credentials) Transport(next http.RoundTripper) (http.RoundTripper, error) {
	set := 0
	for _, v := range []string{c.APIKey, c.Username, c.Token} {
		if v != "" {
			set++
		}
	}
	switch {
	case set > 1:
		return nil, ErrConflictingCredentials
	case c.APIKey != "":
		return &APIKeyTransport{ID: c.APIKeyID, Key: c.APIKey, Base: next}, nil
	case c.Username != "":
		return &BasicTransport{Username: c.Username, Password: c.Password, Base: next}, nil
	case c.Token != "":
		return &BearerTokenTransport{Token: c.Token, Base: next}, nil
	}
	return base(next), nil
}

func withAuthorization(req *http.Request, value string, next http.RoundTripper) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", value)
	return base(next).RoundTrip(clone)
}

func base(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}
