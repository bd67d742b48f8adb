package events

import "time"

// Topics
const (
	TopicUsers = "users"
	TopicEmail = "email"
)

// Event types, used as routing keys within a topic.
const (
	TypeCreate = "CREATE"
	TypeUpdate = "UPDATE"
	TypeDelete = "DELETE"
	TypeSend   = "SEND"
)

// Event is the envelope for every message placed on the bus.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// UserPayload is the field snapshot published on CREATE and UPDATE events.
// Verification token fields are never included.
type UserPayload struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Surname       string `json:"surname"`
	// TODO: stop publishing the hashed credential once downstream consumers
	// confirm nothing reads it.
	HashedPassword string    `json:"hashed_password"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserDeletedPayload carries only the id; deleted entities must not leak
// any other field into the stream.
type UserDeletedPayload struct {
	ID string `json:"id"`
}

// EmailContext holds the variables the mail worker feeds to the template.
type EmailContext struct {
	Username string `json:"username"`
	Link     string `json:"link"`
}

// EmailPayload asks the mail worker to render and send one message.
type EmailPayload struct {
	To           string       `json:"to"`
	Subject      string       `json:"subject"`
	TemplateName string       `json:"template_name"`
	Context      EmailContext `json:"context"`
}

// NotificationError causes.
const (
	CauseConnectionUnavailable = "connection_unavailable"
	CausePublishFailed         = "publish_failed"
)

// NotificationError reports a failed interaction with the message bus.
type NotificationError struct {
	Cause string
	Err   error
}

func (e *NotificationError) Error() string {
	if e.Err != nil {
		return "notification: " + e.Cause + ": " + e.Err.Error()
	}
	return "notification: " + e.Cause
}

func (e *NotificationError) Unwrap() error { return e.Err }
