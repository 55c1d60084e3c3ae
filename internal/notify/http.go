package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const dispatchTimeout = 10 * time.Second

// HTTPNotifier posts notification requests as JSON to an external mail
// service endpoint.
type HTTPNotifier struct {
	endpoint string
	client   *http.Client
}

// NewHTTPNotifier constructs a notifier for the given endpoint. A nil client
// gets a default with a bounded timeout.
func NewHTTPNotifier(endpoint string, client *http.Client) *HTTPNotifier {
	if client == nil {
		client = &http.Client{Timeout: dispatchTimeout}
	}
	return &HTTPNotifier{endpoint: endpoint, client: client}
}

func (n *HTTPNotifier) Send(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send notification: mail service returned %d", resp.StatusCode)
	}
	return nil
}
