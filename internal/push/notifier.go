package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/observability"
)

const previewLimit = 50

// Notification is the envelope handed to the push delivery workers.
type Notification struct {
	UserID int    `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Icon   string `json:"icon,omitempty"`
	Tag    string `json:"tag"`
	ChatID int    `json:"chat_id"`
}

// Notifier publishes push notifications. Delivery is best effort end to end;
// SendToUser reports whether the payload was handed to the broker.
type Notifier interface {
	SendToUser(ctx context.Context, n Notification) bool
	Close() error
}

// NewNotifier builds an AMQP-backed notifier or a noop notifier when the
// broker is unreachable or disabled.
func NewNotifier(amqpURL, exchange string) Notifier {
	if amqpURL == "" {
		log.Printf("push disabled, using noop: empty amqp url")
		return noopNotifier{reason: "empty amqp url"}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Printf("push disabled, using noop: %v", err)
		return noopNotifier{reason: err.Error()}
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("push disabled, using noop: %v", err)
		_ = conn.Close()
		return noopNotifier{reason: err.Error()}
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		log.Printf("push disabled, using noop: %v", err)
		_ = ch.Close()
		_ = conn.Close()
		return noopNotifier{reason: err.Error()}
	}

	log.Printf("push connected exchange=%s", exchange)
	return &amqpNotifier{conn: conn, ch: ch, exchange: exchange}
}

type amqpNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func (p *amqpNotifier) SendToUser(ctx context.Context, n Notification) bool {
	body, err := json.Marshal(n)
	if err != nil {
		log.Printf("push marshal failed user=%d: %v", n.UserID, err)
		observability.IncPushPublishError()
		return false
	}

	routingKey := fmt.Sprintf("push.user.%d", n.UserID)
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		log.Printf("push publish failed user=%d: %v", n.UserID, err)
		observability.IncPushPublishError()
		return false
	}
	return true
}

func (p *amqpNotifier) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type noopNotifier struct {
	reason string
}

func (noopNotifier) SendToUser(ctx context.Context, n Notification) bool {
	log.Printf("push noop user=%d tag=%s title=%q", n.UserID, n.Tag, n.Title)
	return false
}

func (noopNotifier) Close() error {
	return nil
}

// NotifierMode reports the notifier mode for logging.
func NotifierMode(p Notifier) string {
	switch p.(type) {
	case *amqpNotifier:
		return "amqp"
	case noopNotifier:
		return "noop"
	default:
		return "unknown"
	}
}

// MessageNotification formats the push payload for a delivered message.
// Private chats lead with the sender name; group chats prefix it to the body.
func MessageNotification(recipientID int, msg models.FullMessage) Notification {
	preview := msg.MessageText
	if msg.MessageType != models.MessageTypeText && preview == "" {
		preview = attachmentPreview(msg)
	}
	if len(preview) > previewLimit {
		preview = preview[:previewLimit-3] + "..."
	}

	n := Notification{
		UserID: recipientID,
		Icon:   msg.Sender.ProfilePic,
		Tag:    fmt.Sprintf("chat-%d", msg.ChatID),
		ChatID: msg.ChatID,
	}
	if msg.Chat.ChatType == models.ChatTypeGroup {
		n.Title = msg.Chat.ChatName
		n.Body = msg.Sender.FullName + ": " + preview
	} else {
		n.Title = msg.Sender.FullName
		n.Body = preview
	}
	return n
}

func attachmentPreview(msg models.FullMessage) string {
	switch msg.MessageType {
	case models.MessageTypeImage:
		return "📷 Photo"
	case models.MessageTypeVideo:
		return "🎥 Video"
	case models.MessageTypeAudio:
		return "🎵 Audio"
	case models.MessageTypeDocument:
		return "📄 Document"
	default:
		if len(msg.Attachments) > 0 {
			return msg.Attachments[0].OriginalFilename
		}
		return "📎 Attachment"
	}
}
