package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TicketClient asks the external ticket service to render the artifact for a
// confirmed booking. Generation failures are the caller's to log; a missing
// ticket never rolls back a payment confirmation.
type TicketClient struct {
	BaseURL string
	APIKey  string

	client *http.Client
}

func NewTicketClient(baseURL, apiKey string) *TicketClient {
	return &TicketClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *TicketClient) Generate(ctx context.Context, bookingID uuid.UUID) error {
	if c.BaseURL == "" {
		return fmt.Errorf("ticket service URL is not configured")
	}

	body, err := json.Marshal(map[string]string{"booking_id": bookingID.String()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/tickets", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ticket service returned status %d", resp.StatusCode)
	}
	return nil
}
