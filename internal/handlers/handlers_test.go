package handlers_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cankoseoglu/fax-web-app/internal/config"
	"github.com/cankoseoglu/fax-web-app/internal/database"
	"github.com/cankoseoglu/fax-web-app/internal/routes"
	"github.com/cankoseoglu/fax-web-app/internal/services"
	"github.com/cankoseoglu/fax-web-app/internal/utils"
)

const (
	testWebhookSecret = "whsec_test_secret"
	testOperatorKey   = "operator-key"
)

// fakeCarrier stands in for the fax gateway's HTTP API.
type fakeCarrier struct {
	mu          sync.Mutex
	nextFax     int
	submissions int
	failCreate  bool
}

func (c *fakeCarrier) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()

		switch {
		case r.URL.Path == "/faxes":
			if c.failCreate {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			c.nextFax++
			fmt.Fprintf(w, `{"id":"fax_%d"}`, c.nextFax)
		case strings.HasSuffix(r.URL.Path, "/send"):
			c.submissions++
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
		}
	})
}

func (c *fakeCarrier) Submissions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submissions
}

// fakeProcessor stands in for the payment gateway's HTTP API.
type fakeProcessor struct {
	mu          sync.Mutex
	nextSession int
}

func (p *fakeProcessor) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()

		p.nextSession++
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"cs_test_%d"}`, p.nextSession)
	})
}

type testApp struct {
	app     *fiber.App
	db      *gorm.DB
	cfg     *config.Config
	carrier *fakeCarrier
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	processor := &fakeProcessor{}
	processorServer := httptest.NewServer(processor.handler())
	t.Cleanup(processorServer.Close)

	carrier := &fakeCarrier{}
	carrierServer := httptest.NewServer(carrier.handler())
	t.Cleanup(carrierServer.Close)

	adminKeyHash, err := utils.HashSecret(testOperatorKey)
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:    "test-jwt-secret",
		TokenExpires: time.Hour,
		AdminKeyHash: adminKeyHash,

		PaymentAPIURL:        processorServer.URL,
		PaymentAPIKey:        "sk_test_key",
		PaymentWebhookSecret: testWebhookSecret,
		Currency:             "usd",

		FaxAPIURL: carrierServer.URL,
		FaxAPIKey: "fax_test_key",

		BasePrice:         "0.40",
		HomeCountry:       "US",
		DefaultMultiplier: "1.5",
	}

	pricing, err := services.NewPricingService(cfg)
	require.NoError(t, err)

	payment := services.NewPaymentService(cfg)
	fax := services.NewFaxService(cfg)
	txns := services.NewTransactionService(db, pricing, payment, fax)

	app := fiber.New()
	routes.Register(app, cfg, txns, pricing, payment, fax)

	return &testApp{app: app, db: db, cfg: cfg, carrier: carrier}
}

func (ta *testApp) request(t *testing.T, method, target string, body io.Reader, header map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := ta.app.Test(req, 5000)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.Contains(resp.Header.Get("Content-Type"), "json") {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}

	return resp, decoded
}

// createTransaction drives the public submission endpoint and returns the
// created id and payment session id.
func (ta *testApp) createTransaction(t *testing.T, country, recipient string, pages int) (string, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("countryCode", country))
	require.NoError(t, writer.WriteField("recipientNumber", recipient))
	for i := 0; i < pages; i++ {
		part, err := writer.CreateFormFile("documents", fmt.Sprintf("page-%d.pdf", i+1))
		require.NoError(t, err)
		_, err = part.Write([]byte("page content"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	resp, body := ta.request(t, http.MethodPost, "/api/transactions", &buf, map[string]string{
		"Content-Type": writer.FormDataContentType(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	id, _ := body["id"].(string)
	sessionID, _ := body["paymentSessionId"].(string)
	require.NotEmpty(t, id)
	require.NotEmpty(t, sessionID)

	return id, sessionID
}

func signPayload(secret string, payload []byte) string {
	now := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", now, payload)
	return fmt.Sprintf("t=%d,v1=%s", now, hex.EncodeToString(mac.Sum(nil)))
}

func sessionCompletedPayload(sessionID string, amountTotal int64) []byte {
	return []byte(fmt.Sprintf(
		`{"type":"checkout.session.completed","data":{"object":{"id":%q,"amount_total":%d}}}`,
		sessionID, amountTotal,
	))
}
