package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"tableside/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Subscribe opens the backend event stream. The returned channel is closed
// when ctx is cancelled or the connection drops.
func (c *Client) Subscribe(ctx context.Context) (<-chan models.Event, error) {
	wsURL := "ws" + strings.TrimPrefix(c.BaseURL, "http") + "/ws"
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = c.httpClient.Timeout
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{
				Kind:       KindBackend,
				Message:    fmt.Sprintf("Event stream refused (HTTP %d)", resp.StatusCode),
				StatusCode: resp.StatusCode,
				Err:        err,
			}
		}
		return nil, transportError(err, isTimeout(err))
	}

	events := make(chan models.Event, 16)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(events)
		defer close(done)
		defer conn.Close()
		for {
			var evt models.Event
			if err := conn.ReadJSON(&evt); err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("event stream closed", zap.Error(err))
				}
				return
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
