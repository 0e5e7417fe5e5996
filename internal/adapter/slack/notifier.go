// Package slack implements a notifier.Notifier for Slack incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/StaffForge/internal/port/notifier"
)

const providerName = "slack"

// detailKeys are the event data fields shown as Block Kit fields, in order.
var detailKeys = []struct{ key, label string }{
	{"code", "Reference"},
	{"consultant_name", "Consultant"},
	{"role", "Role"},
	{"start_date", "From"},
	{"end_date", "Until"},
	{"level_name", "Approval level"},
}

// Notifier posts staffing notifications to a Slack channel.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier creates a Slack notifier with the given webhook URL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{RichFormatting: true}
}

type message struct {
	Blocks []block `json:"blocks"`
}

type block struct {
	Type     string `json:"type"`
	Text     *text  `json:"text,omitempty"`
	Fields   []text `json:"fields,omitempty"`
	Elements []text `json:"elements,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (n *Notifier) Send(ctx context.Context, nt notifier.Notification) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	body, err := json.Marshal(render(nt))
	if err != nil {
		return fmt.Errorf("slack marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack API %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func render(nt notifier.Notification) message {
	msg := message{Blocks: []block{
		{Type: "header", Text: &text{Type: "plain_text", Text: levelTag(nt.Level) + " " + nt.Title}},
		{Type: "section", Text: &text{Type: "mrkdwn", Text: nt.Message}},
	}}

	var fields []text
	for _, d := range detailKeys {
		v, ok := nt.Data[d.key]
		if !ok {
			continue
		}
		fields = append(fields, text{Type: "mrkdwn", Text: fmt.Sprintf("*%s*\n%s", d.label, formatValue(v))})
	}
	if len(fields) > 0 {
		msg.Blocks = append(msg.Blocks, block{Type: "section", Fields: fields})
	}

	ctxLine := fmt.Sprintf("%s | tenant %s", nt.Source, nt.TenantID)
	if len(nt.To) > 0 {
		ctxLine += " | for " + strings.Join(nt.To, ", ")
	}
	msg.Blocks = append(msg.Blocks, block{Type: "context", Elements: []text{{Type: "mrkdwn", Text: ctxLine}}})
	return msg
}

func formatValue(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.DateOnly)
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts.Format(time.DateOnly)
		}
		return t
	default:
		return fmt.Sprint(t)
	}
}

func levelTag(level string) string {
	switch level {
	case "success":
		return "[OK]"
	case "error":
		return "[ERROR]"
	case "warning":
		return "[WARN]"
	default:
		return "[INFO]"
	}
}
