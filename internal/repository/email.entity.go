package repository

import (
	"time"

	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
)

type ScheduledEmailEntity struct {
	pg.Model
	DedupKey    string     `gorm:"column:dedup_key;not null;uniqueIndex:idx_scheduled_emails_dedup_key"`
	Kind        string     `gorm:"column:kind;not null"`
	Recipient   string     `gorm:"column:recipient;not null"`
	Subject     string     `gorm:"column:subject;not null"`
	Body        string     `gorm:"column:body;not null"`
	ReferenceID string     `gorm:"column:reference_id;not null"`
	SendAt      time.Time  `gorm:"column:send_at;not null"`
	Status      string     `gorm:"column:status;not null"`
	Attempts    int        `gorm:"column:attempts;not null"`
	LastError   string     `gorm:"column:last_error;not null"`
	SentAt      *time.Time `gorm:"column:sent_at"`
}

func (ScheduledEmailEntity) TableName() string {
	return "scheduled_emails"
}

type FunctionCredentialEntity struct {
	pg.Model
	FunctionName string `gorm:"column:function_name;not null;uniqueIndex"`
	Token        string `gorm:"column:token;not null"`
}

func (FunctionCredentialEntity) TableName() string {
	return "function_credentials"
}

func toScheduledEmailEntity(m *model.ScheduledEmail) *ScheduledEmailEntity {
	status := string(m.Status)
	if status == "" {
		status = string(model.EmailPending)
	}
	return &ScheduledEmailEntity{
		Model:       pg.Model{ID: m.ID},
		DedupKey:    m.DedupKey,
		Kind:        m.Kind,
		Recipient:   m.Recipient,
		Subject:     m.Subject,
		Body:        m.Body,
		ReferenceID: m.ReferenceID,
		SendAt:      m.SendAt.UTC(),
		Status:      status,
		Attempts:    m.Attempts,
		LastError:   m.LastError,
		SentAt:      m.SentAt,
	}
}

func toScheduledEmailModel(e *ScheduledEmailEntity) *model.ScheduledEmail {
	return &model.ScheduledEmail{
		ID:          e.ID,
		DedupKey:    e.DedupKey,
		Kind:        e.Kind,
		Recipient:   e.Recipient,
		Subject:     e.Subject,
		Body:        e.Body,
		ReferenceID: e.ReferenceID,
		SendAt:      e.SendAt,
		Status:      model.EmailStatus(e.Status),
		Attempts:    e.Attempts,
		LastError:   e.LastError,
		SentAt:      e.SentAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}
