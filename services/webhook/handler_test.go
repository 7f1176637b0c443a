package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"settlement-engine/pkg/middleware"
	"settlement-engine/services/payment"
)

func newTestRouter(t *testing.T) (*gin.Engine, *testEnv) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := newTestEnv(t)
	engine := gin.New()
	engine.Use(middleware.Error())
	NewHandler(env.svc).Register(engine)
	return engine, env
}

func postWebhook(router *gin.Engine, provider string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, bytes.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestReceiveReturnsBadRequestOnInvalidSignature(t *testing.T) {
	router, _ := newTestRouter(t)

	body := payoutBody(t, "evt-http-1", "payout.completed", "po_1", "")
	header := http.Header{}
	header.Set("X-Webhook-Signature", "deadbeef")

	w := postWebhook(router, "payout", body, header)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReceiveReturnsBadRequestOnMissingSignature(t *testing.T) {
	router, _ := newTestRouter(t)

	body := payoutBody(t, "evt-http-2", "payout.completed", "po_1", "")
	w := postWebhook(router, "payout", body, http.Header{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReceiveReturnsBadRequestOnMalformedPayload(t *testing.T) {
	router, _ := newTestRouter(t)

	body := []byte(`{"event_id": "evt-http-3"`)
	w := postWebhook(router, "payout", body, signedHeader(body))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReceiveAcksSignedEvent(t *testing.T) {
	router, env := newTestRouter(t)
	p := env.dispatchedPayment(t, "100.00")

	body := payoutBody(t, "evt-http-4", "payout.completed", p.ExternalTransactionID, "")
	w := postWebhook(router, "payout", body, signedHeader(body))
	require.Equal(t, http.StatusOK, w.Code)

	updated, err := env.payments.Get(context.Background(), p.PaymentID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusCompleted, updated.Status)
}
