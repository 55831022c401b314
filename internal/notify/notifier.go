package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// Message carries the fields the chat collaborator formats into a
// human-readable notification.
type Message struct {
	Event         string    `json:"event"`
	EquipmentName string    `json:"equipment_name"`
	Quantity      int       `json:"quantity,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	Technician    string    `json:"technician,omitempty"`
	Cost          string    `json:"cost,omitempty"`
	Note          string    `json:"note,omitempty"`
	At            time.Time `json:"at"`
}

type Notifier interface {
	Notify(msg Message)
}

// WebhookNotifier posts messages to a configured webhook. Delivery is
// best-effort: callers invoke it after their transaction committed and a
// failed delivery is only logged.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

func NewWebhookNotifier(log *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    os.Getenv("NOTIFY_WEBHOOK_URL"),
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

func (n *WebhookNotifier) Notify(msg Message) {
	if n.url == "" {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		n.log.Warn("failed to marshal notification", zap.Error(err))
		return
	}

	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		n.log.Warn("failed to deliver notification", zap.String("event", msg.Event), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.Warn("notification webhook rejected message",
			zap.String("event", msg.Event),
			zap.String("status", fmt.Sprintf("%d", resp.StatusCode)),
		)
	}
}
