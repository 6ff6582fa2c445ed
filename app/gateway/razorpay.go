package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultRazorpayBaseURL = "https://api.razorpay.com"

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	HTTPTimeout   time.Duration
}

type RazorpayGateway struct {
	cfg    RazorpayConfig
	client *http.Client
}

func NewRazorpayGateway(cfg RazorpayConfig) *RazorpayGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultRazorpayBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &RazorpayGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, input *CreateOrderInput) (*Order, error) {
	if strings.TrimSpace(g.cfg.KeyID) == "" || strings.TrimSpace(g.cfg.KeySecret) == "" {
		return nil, errors.New("razorpay api keys are not configured")
	}

	payload := map[string]interface{}{
		"amount":   input.AmountCents,
		"currency": input.Currency,
		"receipt":  input.Receipt,
	}
	if len(input.Notes) > 0 {
		payload["notes"] = input.Notes
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/orders", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("razorpay create order failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var order struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, err
	}
	if strings.TrimSpace(order.ID) == "" {
		return nil, errors.New("razorpay order id missing")
	}

	return &Order{
		ID:          order.ID,
		AmountCents: order.Amount,
		Currency:    order.Currency,
		Receipt:     order.Receipt,
		Status:      order.Status,
	}, nil
}

// VerifyPaymentSignature checks the checkout signature the client posts
// back after payment: HMAC-SHA256 over "<order_id>|<payment_id>" keyed
// with the api secret, hex encoded.
func (g *RazorpayGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if strings.TrimSpace(g.cfg.KeySecret) == "" {
		return false
	}
	return verifyHexHMAC([]byte(orderID+"|"+paymentID), signature, g.cfg.KeySecret)
}

// VerifyWebhookSignature checks X-Razorpay-Signature against the raw,
// unmodified request body.
func (g *RazorpayGateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	if strings.TrimSpace(g.cfg.WebhookSecret) == "" {
		return false
	}
	return verifyHexHMAC(payload, signature, g.cfg.WebhookSecret)
}

func (g *RazorpayGateway) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	var event struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					ID      string `json:"id"`
					OrderID string `json:"order_id"`
				} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}

	return &WebhookEvent{
		EventType: event.Event,
		PaymentID: strings.TrimSpace(event.Payload.Payment.Entity.ID),
		OrderID:   strings.TrimSpace(event.Payload.Payment.Entity.OrderID),
	}, nil
}

func verifyHexHMAC(message []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	candidate, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)

	return hmac.Equal(candidate, mac.Sum(nil))
}
