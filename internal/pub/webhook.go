package pub

import (
	"bytes"
	"context"
	"fmt"
	"inboxlens/internal/types"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// resultEvent is the body posted back to the host UI per resolved key.
type resultEvent struct {
	ID   string           `json:"id"`
	Data types.ThreadData `json:"data"`
}

type webhookNotifier struct {
	url string
	hc  *http.Client
}

// NewWebhook builds the default notifier: one POST to the host UI's callback
// URL per resolved key.
func NewWebhook(url string) *webhookNotifier {
	return &webhookNotifier{
		url: url,
		hc:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *webhookNotifier) Notify(ctx context.Context, key string, data types.ThreadData) error {
	body, err := json.Marshal(resultEvent{ID: key, Data: data})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook notify: status %d", resp.StatusCode)
	}
	return nil
}
