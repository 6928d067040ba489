// internal/notify/sender.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Sender delivers one push notification. Delivery is best-effort and
// never affects ledger state.
type Sender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// PushSender sends notifications to an FCM-compatible endpoint. A
// circuit breaker sheds load when the push service is down so reminder
// runs fail fast instead of burning retries.
type PushSender struct {
	endpoint  string
	serverKey string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
}

// NewPushSender creates a sender for the given endpoint.
func NewPushSender(endpoint, serverKey string) *PushSender {
	return &PushSender{
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "push",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

type pushMessage struct {
	To           string            `json:"to"`
	Notification pushNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send posts the notification through the circuit breaker.
func (ps *PushSender) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	payload, err := json.Marshal(pushMessage{
		To:           token,
		Notification: pushNotification{Title: title, Body: body},
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}

	_, err = ps.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ps.endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "key="+ps.serverKey)

		resp, err := ps.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("push endpoint returned %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}
