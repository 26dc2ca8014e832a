package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureAuthorization(t *testing.T, rt http.RoundTripper) string {
	t.Helper()
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := (&http.Client{Transport: rt}).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, req.Header.Get("Authorization"), "caller's request must not be mutated")
	return got
}

func TestTransports(t *testing.T) {
	tests := []struct {
		name string
		rt   http.RoundTripper
		want string
	}{
		{name: "api key with id", rt: &APIKeyTransport{ID: "id", Key: "secret"}, want: "ApiKey aWQ6c2VjcmV0"},
		{name: "encoded api key", rt: &APIKeyTransport{Key: "aWQ6c2VjcmV0"}, want: "ApiKey aWQ6c2VjcmV0"},
		{name: "empty api key", rt: &APIKeyTransport{}, want: ""},
		{name: "basic", rt: &BasicTransport{Username: "elastic", Password: "changeme"}, want: "Basic ZWxhc3RpYzpjaGFuZ2VtZQ=="},
		{name: "bearer", rt: &BearerTokenTransport{Token: "tok"}, want: "Bearer tok"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, captureAuthorization(t, tc.rt))
		})
	}
}

func TestCredentials_Transport(t *testing.T) {
	rt, err := Credentials{Username: "elastic", Password: "pw"}.Transport(nil)
	require.NoError(t, err)
	assert.IsType(t, &BasicTransport{}, rt)

	rt, err = Credentials{APIKeyID: "id", APIKey: "secret"}.Transport(nil)
	require.NoError(t, err)
	assert.Equal(t, "ApiKey aWQ6c2VjcmV0", captureAuthorization(t, rt))

	rt, err = Credentials{}.Transport(nil)
	require.NoError(t, err)
	assert.Same(t, http.DefaultTransport, rt)

	_, err = Credentials{APIKey: "k", Token: "t"}.Transport(nil)
	require.ErrorIs(t, err, ErrConflictingCredentials)
}
