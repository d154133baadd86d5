package provider

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobmux/blobmux/pkg/s3store"
)

func TestAdminLinkLifecycle(t *testing.T) {
	p := testProvider()
	server := httptest.NewServer(p.AdminRouter())
	defer server.Close()

	put, err := http.NewRequest(http.MethodPut, server.URL+"/links/caller",
		strings.NewReader(`{"access_key_id": "AKIAEXAMPLE", "secret_access_key": "secret"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(put)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = p.Registry().Lookup("caller")
	assert.NoError(t, err)

	del, err := http.NewRequest(http.MethodDelete, server.URL+"/links/caller", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(del)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = p.Registry().Lookup("caller")
	assert.Error(t, err)
}

func TestAdminRejectsBadBody(t *testing.T) {
	p := testProvider()
	server := httptest.NewServer(p.AdminRouter())
	defer server.Close()

	put, err := http.NewRequest(http.MethodPut, server.URL+"/links/caller",
		strings.NewReader(`not json`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(put)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminRejectsBadLinkConfig(t *testing.T) {
	// provider with no default region: an empty link config is rejected
	p := New(NewRegistry(), s3store.StorageConfig{}, nil, testLogger())
	server := httptest.NewServer(p.AdminRouter())
	defer server.Close()

	put, err := http.NewRequest(http.MethodPut, server.URL+"/links/caller",
		strings.NewReader(`{}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(put)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAdminHealthAndLinks(t *testing.T) {
	p := testProvider()
	require.NoError(t, p.OnLinkCreate("caller", nil))
	server := httptest.NewServer(p.AdminRouter())
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/links")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
