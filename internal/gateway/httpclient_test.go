package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChargeCaptured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var req chargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "card_123", req.PaymentRef)
		assert.Equal(t, 150.00, req.Amount)

		json.NewEncoder(w).Encode(chargeResponse{ChargeID: "ch_abc"})
	}))
	defer srv.Close()

	g := NewHTTPClient(srv.URL, "sk_test")
	id, err := g.Charge(context.Background(), "card_123", 150.00)
	require.NoError(t, err)
	assert.Equal(t, "ch_abc", id)
}

func TestChargeDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chargeResponse{Declined: true})
	}))
	defer srv.Close()

	g := NewHTTPClient(srv.URL, "sk_test")
	_, err := g.Charge(context.Background(), "card_bad", 150.00)
	assert.ErrorIs(t, err, ErrChargeDeclined)
}

func TestChargeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewHTTPClient(srv.URL, "sk_test")
	_, err := g.Charge(context.Background(), "card_123", 150.00)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrChargeDeclined, "a transport failure is not a decline")
}

func TestPayout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payouts", r.URL.Path)
		var req payoutRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "acct_42", req.PayoutRef)
		assert.Equal(t, 90.00, req.Amount)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	g := NewHTTPClient(srv.URL, "sk_test")
	require.NoError(t, g.Payout(context.Background(), "acct_42", 90.00))
}

func TestClientHasDefaultTimeout(t *testing.T) {
	g := NewHTTPClient("http://gateway", "sk_test")
	assert.NotZero(t, g.client.Timeout, "a call without a context deadline must still be bounded")
}

func TestEventValidate(t *testing.T) {
	valid := Event{ID: "evt-1", Type: EventChargeCaptured, TransactionID: "txn-1"}
	assert.NoError(t, valid.Validate())

	missingID := valid
	missingID.ID = ""
	assert.Error(t, missingID.Validate())

	missingTxn := valid
	missingTxn.TransactionID = ""
	assert.Error(t, missingTxn.Validate())

	badType := valid
	badType.Type = "charge.refunded"
	assert.Error(t, badType.Validate())
}
