// Package notify delivers formatted change events to a chat webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mlaakso/sharewatch/internal/collector"
)

// message is the webhook payload. Most chat webhooks accept a plain text
// field; anything richer belongs to the receiving side.
type message struct {
	Text string `json:"text"`
}

// WebhookNotifier posts change events to a chat webhook URL. Events carrying
// a NotifyTarget override the default URL, so each watched resource can
// route to its own channel.
type WebhookNotifier struct {
	defaultURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a WebhookNotifier with the given default webhook URL.
func New(defaultURL string, httpClient *http.Client, logger *slog.Logger) *WebhookNotifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &WebhookNotifier{
		defaultURL: defaultURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify posts one event. A non-2xx response or transport error is returned
// to the caller, which logs it and moves on — delivery is best effort, one
// attempt per run.
func (n *WebhookNotifier) Notify(ctx context.Context, event *collector.ChangeEvent) error {
	url := n.defaultURL
	if event.NotifyTarget != "" {
		url = event.NotifyTarget
	}

	if url == "" {
		n.logger.Debug("no webhook configured, dropping event",
			slog.String("target_id", event.TargetID),
		)

		return nil
	}

	body, err := json.Marshal(message{Text: FormatEvent(event)})
	if err != nil {
		return fmt.Errorf("notify: encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: webhook returned HTTP %d: %s", resp.StatusCode, errBody)
	}

	n.logger.Debug("notification delivered",
		slog.String("target_id", event.TargetID),
		slog.String("kind", string(event.Change)),
	)

	return nil
}

// FormatEvent renders a change event as a single chat line.
func FormatEvent(e *collector.ChangeEvent) string {
	verb := "granted to"
	if e.Change == collector.ChangeRemoved {
		verb = "revoked from"
	}

	who := describeEntity(&e.Entity)

	actor := e.Actor
	if actor == "" {
		actor = "someone"
	}

	return fmt.Sprintf("%s access to %q %s %s by %s at %s",
		roleLabel(e.Role), e.TargetName, verb, who, actor,
		e.When.UTC().Format(time.RFC3339))
}

// describeEntity renders a classified grantee for humans.
func describeEntity(ent *collector.Entity) string {
	switch ent.Kind {
	case collector.EntityUser:
		return "user " + ent.Identifier
	case collector.EntityGroup:
		return "group " + ent.Identifier
	case collector.EntityDomain:
		return "everyone at " + ent.Identifier
	case collector.EntityAnyone:
		return "anyone with the link"
	default:
		return "an unknown principal"
	}
}

// roleLabel renders an API role constant ("EDITOR", "writer") as a title.
func roleLabel(role string) string {
	if role == "" {
		return "Unspecified"
	}

	lower := strings.ToLower(role)

	return strings.ToUpper(lower[:1]) + lower[1:]
}
