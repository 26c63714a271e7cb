package lib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"rentals/src/config"
	"rentals/src/types"
)

// NotificationsClient hands status-changed events to the notification
// service. Fire and forget: delivery mechanics live on the other side and a
// failed send never rolls back a rental mutation.
type NotificationsClient struct {
	baseURL string
	http    *http.Client
}

func NewNotificationsClient(tokens TokenProvider) *NotificationsClient {
	return &NotificationsClient{
		baseURL: config.NotificationServiceURL(),
		http:    newAuthedHTTPClient(tokens),
	}
}

func NewNotificationsClientWithBaseURL(baseURL string, tokens TokenProvider) *NotificationsClient {
	return &NotificationsClient{baseURL: baseURL, http: newAuthedHTTPClient(tokens)}
}

func (c *NotificationsClient) Send(ctx context.Context, event *types.SendNotificationRequestBody) error {
	ctx, cancel := context.WithTimeout(ctx, config.RemoteCallTimeout())
	defer cancel()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/v1/notifications/send", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("POST %s: unexpected status %d", url, resp.StatusCode)
	}
	return nil
}

// SendAsync dispatches in the background and only logs failures.
func (c *NotificationsClient) SendAsync(event *types.SendNotificationRequestBody) {
	go func() {
		if err := c.Send(context.Background(), event); err != nil {
			log.Printf("[notifications] Error dispatching %s event: %s\n", event.Type, err.Error())
		}
	}()
}
