package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type EmailStatus string

const (
	EmailPending EmailStatus = "pending"
	EmailSending EmailStatus = "sending"
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
)

const (
	EmailKindReminder        = "reminder"
	EmailKindPromiseFollowUp = "promise_followup"
	EmailKindStatement       = "statement"
	EmailKindCustom          = "custom"
)

type ScheduledEmail struct {
	ID          uuid.UUID   `json:"id"`
	DedupKey    string      `json:"dedup_key"`
	Kind        string      `json:"kind"`
	Recipient   string      `json:"recipient"`
	Subject     string      `json:"subject"`
	Body        string      `json:"body"`
	ReferenceID string      `json:"reference_id"`
	SendAt      time.Time   `json:"send_at"`
	Status      EmailStatus `json:"status"`
	Attempts    int         `json:"attempts"`
	LastError   string      `json:"last_error"`
	SentAt      *time.Time  `json:"sent_at"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// EmailDedupKey identifies one logical send: the same kind of email about the
// same subject to the same recipient at most once per day.
func EmailDedupKey(kind, recipient, referenceID string, sendAt time.Time) string {
	return strings.Join([]string{
		kind,
		strings.ToLower(strings.TrimSpace(recipient)),
		referenceID,
		sendAt.UTC().Format("2006-01-02"),
	}, ":")
}

func ReminderDedupKey(reminderID uuid.UUID) string {
	return "reminder:" + reminderID.String()
}

type EmailFilter struct {
	Statuses []EmailStatus
	Kind     string
	Limit    int
	Offset   int
}

// EmailJob is the queue payload handed to the email processor.
type EmailJob struct {
	EmailID   uuid.UUID `json:"email_id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Kind      string    `json:"kind"`
}

type FunctionCredential struct {
	ID           uuid.UUID `json:"id"`
	FunctionName string    `json:"function_name"`
	Token        string    `json:"-"`
}
