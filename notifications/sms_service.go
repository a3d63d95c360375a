package notifications

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wanjalasam/bus_booking/models"
)

// SMSService delivers customer notifications over an Africa's Talking style
// bulk SMS endpoint. Delivery is fire and forget; callers log failures and
// never block payment processing on them.
type SMSService struct {
	BaseURL  string
	Username string
	APIKey   string
	SenderID string

	client     *http.Client
	lookupUser func(id uuid.UUID) (*models.User, error)
}

func NewSMSService(baseURL, username, apiKey, senderID string, lookupUser func(id uuid.UUID) (*models.User, error)) *SMSService {
	if baseURL == "" {
		baseURL = "https://api.africastalking.com/version1/messaging"
	}
	return &SMSService{
		BaseURL:    baseURL,
		Username:   username,
		APIKey:     apiKey,
		SenderID:   senderID,
		client:     &http.Client{Timeout: 15 * time.Second},
		lookupUser: lookupUser,
	}
}

func (s *SMSService) SendPaymentConfirmation(userID, bookingID uuid.UUID, amount float64, method models.PaymentMethod, transactionID string) error {
	msg := fmt.Sprintf("Payment of %.2f received via %s for booking %s. Ref: %s. Your seat is confirmed.",
		amount, methodLabel(method), shortID(bookingID), transactionID)
	return s.send(userID, msg)
}

func (s *SMSService) SendPaymentFailed(userID, bookingID uuid.UUID, amount float64, method models.PaymentMethod, reason string) error {
	if reason == "" {
		reason = "payment was not completed"
	}
	msg := fmt.Sprintf("Payment of %.2f via %s for booking %s failed: %s. Please try again.",
		amount, methodLabel(method), shortID(bookingID), reason)
	return s.send(userID, msg)
}

func (s *SMSService) send(userID uuid.UUID, message string) error {
	if s.Username == "" || s.APIKey == "" {
		log.Println("⚠️ SMS service not configured, dropping notification")
		return nil
	}

	user, err := s.lookupUser(userID)
	if err != nil {
		return fmt.Errorf("cannot resolve notification recipient: %w", err)
	}

	form := url.Values{
		"username": {s.Username},
		"to":       {user.Phone},
		"message":  {message},
		"from":     {s.SenderID},
	}
	req, err := http.NewRequest(http.MethodPost, s.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apiKey", s.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("SMS provider returned status %d", resp.StatusCode)
	}
	return nil
}

func methodLabel(m models.PaymentMethod) string {
	switch m {
	case models.MethodMpesa:
		return "M-Pesa"
	case models.MethodAirtel:
		return "Airtel Money"
	case models.MethodCard:
		return "card"
	default:
		return "cash"
	}
}

func shortID(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}
