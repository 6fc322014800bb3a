// ABOUTME: Slack operator for posting messages to Slack via an incoming webhook
// ABOUTME: No slack-specific SDK is used; this is a plain JSON webhook POST

package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sarlalian/newton/pkg/types"
)

// SlackOperator posts a message to a Slack incoming webhook URL.
type SlackOperator struct {
	client *http.Client
}

// NewSlackOperator constructs the Slack operator.
func NewSlackOperator() *SlackOperator {
	return &SlackOperator{client: &http.Client{Timeout: 15 * time.Second}}
}

func (o *SlackOperator) Name() string { return "slack" }

type slackPayload struct {
	Channel   string `json:"channel,omitempty"`
	Username  string `json:"username,omitempty"`
	Text      string `json:"text,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
	IconURL   string `json:"icon_url,omitempty"`
}

func (o *SlackOperator) ValidateParams(raw map[string]interface{}, _ *types.Settings) error {
	if _, ok := raw["webhook_url"].(string); !ok {
		return fmt.Errorf("slack operator requires a string 'webhook_url'")
	}
	if _, ok := raw["message"].(string); !ok {
		return fmt.Errorf("slack operator requires a string 'message'")
	}
	return nil
}

func (o *SlackOperator) Execute(ctx context.Context, raw map[string]interface{}, _ types.ExecutionContext) (interface{}, error) {
	webhookURL := raw["webhook_url"].(string)
	payload := slackPayload{
		Text: raw["message"].(string),
	}
	payload.Channel, _ = raw["channel"].(string)
	payload.Username, _ = raw["username"].(string)
	payload.IconEmoji, _ = raw["icon_emoji"].(string)
	payload.IconURL, _ = raw["icon_url"].(string)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("slack: encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("slack: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack: posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("slack: webhook returned status %d", resp.StatusCode)
	}

	return map[string]interface{}{"posted": true, "status_code": resp.StatusCode}, nil
}
