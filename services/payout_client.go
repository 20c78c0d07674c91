// services/payout_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutSender performs the outbound value transfer of a settlement. A
// returned error means the transfer did not happen and the whole operation
// must roll back.
type PayoutSender interface {
	Send(ctx context.Context, userID string, amount decimal.Decimal) error
}

// PayoutClient sends transfers through the external wallet service.
type PayoutClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewPayoutClient(baseURL, token string) *PayoutClient {
	return &PayoutClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Send posts a transfer order. Each call carries a fresh uuid transfer id so
// the wallet service can deduplicate retries submitted by callers.
func (c *PayoutClient) Send(ctx context.Context, userID string, amount decimal.Decimal) error {
	url := fmt.Sprintf("%s/api/v1/transfers", c.BaseURL)

	reqBody := map[string]interface{}{
		"transfer_id": uuid.NewString(),
		"user_id":     userID,
		"amount":      amount.String(),
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("PayoutService transfer for %s returned %d: %s", userID, resp.StatusCode, string(body))
		return fmt.Errorf("%w: status %d", ErrTransferFailed, resp.StatusCode)
	}

	return nil
}
