package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClient is the default Gateway implementation: a thin adapter over the
// processor's REST API. Everything beyond these two calls (retries, auth
// schemes, SDK plumbing) belongs to the processor, not this engine.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	// callers bound each request with a context; the client timeout is the
	// ceiling for anyone who forgets to
	return &HTTPClient{baseURL: baseURL, apiKey: apiKey, client: &http.Client{Timeout: 30 * time.Second}}
}

type chargeRequest struct {
	PaymentRef string  `json:"payment_ref"`
	Amount     float64 `json:"amount"`
}

type chargeResponse struct {
	ChargeID string `json:"charge_id"`
	Declined bool   `json:"declined"`
}

func (g *HTTPClient) Charge(ctx context.Context, buyerPaymentRef string, amount float64) (string, error) {
	var resp chargeResponse
	err := g.post(ctx, "/v1/charges", chargeRequest{PaymentRef: buyerPaymentRef, Amount: amount}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Declined {
		return "", ErrChargeDeclined
	}
	return resp.ChargeID, nil
}

type payoutRequest struct {
	PayoutRef string  `json:"payout_ref"`
	Amount    float64 `json:"amount"`
}

func (g *HTTPClient) Payout(ctx context.Context, payoutRef string, amount float64) error {
	return g.post(ctx, "/v1/payouts", payoutRequest{PayoutRef: payoutRef, Amount: amount}, nil)
}

func (g *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway %s returned %d", path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
