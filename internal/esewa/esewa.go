// Package esewa talks to the eSewa payment gateway: it builds signed
// payment form payloads and verifies transaction status against the
// gateway's remote API.
package esewa

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPaymentURL = "https://rc-epay.esewa.com.np/api/epay/main/v2/form"
	defaultStatusURL  = "https://rc.esewa.com.np/api/epay/transaction/status/"

	verifyTimeout = 10 * time.Second
)

// ErrVerificationFailed covers every verification outcome that is not
// an explicit COMPLETE from the gateway: network errors, non-200
// responses, malformed bodies, and non-complete statuses all fail
// closed.
var ErrVerificationFailed = errors.New("payment verification failed")

type Config struct {
	SecretKey    string
	MerchantCode string
	LocalURL     string

	// PaymentURL and StatusURL default to the eSewa RC environment.
	PaymentURL string
	StatusURL  string
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.PaymentURL == "" {
		cfg.PaymentURL = defaultPaymentURL
	}
	if cfg.StatusURL == "" {
		cfg.StatusURL = defaultStatusURL
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: verifyTimeout},
	}
}

func TransactionUUID(orderID, userID uint) string {
	return fmt.Sprintf("ORDER_%d_%d", orderID, userID)
}

func OrderIDFromTransactionUUID(transactionUUID string) (uint, error) {
	parts := strings.Split(transactionUUID, "_")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid transaction_uuid format: %q", transactionUUID)
	}
	id, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid transaction_uuid format: %q", transactionUUID)
	}
	return uint(id), nil
}

func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// Sign computes the gateway signature: HMAC-SHA256 over "field=value"
// pairs joined by commas, field order taken from signed_field_names,
// digest base64-encoded.
func Sign(secretKey string, payload map[string]string) string {
	fields := strings.Split(payload["signed_field_names"], ",")
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+"="+payload[f])
	}

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(strings.Join(parts, ",")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type PaymentRequest struct {
	URL     string            `json:"esewa_url"`
	Payload map[string]string `json:"payload"`
}

// BuildPayment assembles the signed form payload the frontend posts to
// the gateway. The gateway recomputes and checks the signature.
func (c *Client) BuildPayment(orderID, userID uint, amount float64) PaymentRequest {
	amt := FormatAmount(amount)
	payload := map[string]string{
		"amount":                  amt,
		"tax_amount":              "0",
		"total_amount":            amt,
		"transaction_uuid":        TransactionUUID(orderID, userID),
		"product_code":            c.cfg.MerchantCode,
		"product_service_charge":  "0",
		"product_delivery_charge": "0",
		"success_url":             c.cfg.LocalURL + "/esewa/success",
		"failure_url":             c.cfg.LocalURL + "/esewa/failure",
		"scd":                     c.cfg.MerchantCode,
	}
	payload["signed_field_names"] = "total_amount,transaction_uuid,product_code"
	payload["signature"] = Sign(c.cfg.SecretKey, payload)

	return PaymentRequest{URL: c.cfg.PaymentURL, Payload: payload}
}

// Verify asks the gateway for the transaction status and accepts only
// an explicit COMPLETE.
func (c *Client) Verify(ctx context.Context, transactionUUID string, amount float64) error {
	return c.VerifyRaw(ctx, transactionUUID, FormatAmount(amount))
}

func (c *Client) VerifyRaw(ctx context.Context, transactionUUID, totalAmount string) error {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.StatusURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	q := req.URL.Query()
	q.Set("product_code", c.cfg.MerchantCode)
	q.Set("transaction_uuid", transactionUUID)
	q.Set("total_amount", totalAmount)
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: gateway returned %d", ErrVerificationFailed, resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	if body.Status != "COMPLETE" {
		return fmt.Errorf("%w: gateway status %q", ErrVerificationFailed, body.Status)
	}
	return nil
}

// CallbackData is the base64-JSON blob the gateway appends to the
// success redirect as the data query parameter.
type CallbackData struct {
	TransactionUUID string      `json:"transaction_uuid"`
	TransactionCode string      `json:"transaction_code"`
	TotalAmount     json.Number `json:"total_amount"`
	Status          string      `json:"status"`
}

func DecodeCallbackData(encoded string) (CallbackData, error) {
	var data CallbackData

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return data, fmt.Errorf("decode data param: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("decode data param: %w", err)
	}
	return data, nil
}
