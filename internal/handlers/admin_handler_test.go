package handlers_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (ta *testApp) adminLogin(t *testing.T, apiKey string) (*http.Response, map[string]any) {
	t.Helper()

	return ta.request(t, http.MethodPost, "/api/admin/login",
		bytes.NewReader([]byte(`{"apiKey":"`+apiKey+`"}`)),
		map[string]string{"Content-Type": "application/json"})
}

func TestAdminLogin(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.adminLogin(t, testOperatorKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	resp, _ = ta.adminLogin(t, "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminListTransactions(t *testing.T) {
	ta := newTestApp(t)
	ta.createTransaction(t, "US", "+14155550123", 1)
	ta.createTransaction(t, "FR", "+33155550123", 2)

	resp, _ := ta.request(t, http.MethodGet, "/api/admin/transactions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ta.request(t, http.MethodGet, "/api/admin/transactions", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, login := ta.adminLogin(t, testOperatorKey)
	token, _ := login["token"].(string)
	require.NotEmpty(t, token)

	resp, body := ta.request(t, http.MethodGet, "/api/admin/transactions", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, ok := body["data"].([]any)
	require.True(t, ok)
	assert.Len(t, data, 2)

	resp, body = ta.request(t, http.MethodGet, "/api/admin/transactions?country=FR", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, ok = body["data"].([]any)
	require.True(t, ok)
	assert.Len(t, data, 1)

	resp, _ = ta.request(t, http.MethodGet, "/api/admin/transactions?status=bogus", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
