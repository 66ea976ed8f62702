package handlers_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetTransaction(t *testing.T) {
	ta := newTestApp(t)

	id, sessionID := ta.createTransaction(t, "US", "+14155550123", 3)
	assert.Equal(t, "cs_test_1", sessionID)

	resp, body := ta.request(t, http.MethodGet, "/api/transactions/"+id, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "0", body["amount"])
	assert.Equal(t, "+14155550123", body["recipientNumber"])
	assert.Equal(t, float64(3), body["pageCount"])
	assert.Equal(t, "US", body["countryCode"])
	assert.NotContains(t, body, "error")
	assert.Contains(t, body, "createdAt")
}

func TestCreateTransactionValidation(t *testing.T) {
	ta := newTestApp(t)

	buildForm := func(fields map[string]string, pages int) (*bytes.Buffer, string) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		for k, v := range fields {
			require.NoError(t, writer.WriteField(k, v))
		}
		for i := 0; i < pages; i++ {
			part, err := writer.CreateFormFile("documents", "page.pdf")
			require.NoError(t, err)
			_, err = part.Write([]byte("page content"))
			require.NoError(t, err)
		}
		require.NoError(t, writer.Close())
		return &buf, writer.FormDataContentType()
	}

	tests := []struct {
		name   string
		fields map[string]string
		pages  int
	}{
		{
			name:   "NoDocuments",
			fields: map[string]string{"countryCode": "US", "recipientNumber": "+14155550123"},
		},
		{
			name:   "BadRecipient",
			fields: map[string]string{"countryCode": "US", "recipientNumber": "not-a-number"},
			pages:  1,
		},
		{
			name:   "BadCountry",
			fields: map[string]string{"countryCode": "America", "recipientNumber": "+14155550123"},
			pages:  1,
		},
		{
			name:   "PageCountMismatch",
			fields: map[string]string{"countryCode": "US", "recipientNumber": "+14155550123", "pageCount": "5"},
			pages:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, contentType := buildForm(tt.fields, tt.pages)
			resp, _ := ta.request(t, http.MethodPost, "/api/transactions", buf, map[string]string{
				"Content-Type": contentType,
			})
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	ta := newTestApp(t)

	resp, _ := ta.request(t, http.MethodGet, "/api/transactions/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ta.request(t, http.MethodGet, "/api/transactions/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPrice(t *testing.T) {
	ta := newTestApp(t)

	resp, body := ta.request(t, http.MethodGet, "/api/price?country=US&pages=3", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 1.2, body["total"], 1e-9)

	resp, body = ta.request(t, http.MethodGet, "/api/price?country=FR&pages=1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 0.6, body["total"], 1e-9)

	resp, _ = ta.request(t, http.MethodGet, "/api/price?country=US&pages=zero", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ta.request(t, http.MethodGet, "/api/price?country=US&pages=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ta.request(t, http.MethodGet, "/api/price?country=Narnia&pages=2", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
