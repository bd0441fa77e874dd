package repository

import (
	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
)

type MemoEntity struct {
	pg.Model
	AuthorID    uuid.UUID               `gorm:"column:author_id;type:uuid;not null"`
	CustomerID  *uuid.UUID              `gorm:"column:customer_id;type:uuid;index"`
	InvoiceID   *uuid.UUID              `gorm:"column:invoice_id;type:uuid;index"`
	TicketID    *uuid.UUID              `gorm:"column:ticket_id;type:uuid"`
	Body        string                  `gorm:"column:body;not null"`
	Attachments []*MemoAttachmentEntity `gorm:"foreignKey:MemoID"`
}

func (MemoEntity) TableName() string {
	return "memos"
}

type MemoAttachmentEntity struct {
	pg.Model
	MemoID     uuid.UUID `gorm:"column:memo_id;type:uuid;not null;index"`
	StorageKey string    `gorm:"column:storage_key;not null;uniqueIndex"`
	FileName   string    `gorm:"column:file_name;not null"`
	MimeType   string    `gorm:"column:mime_type;not null"`
	SizeBytes  int64     `gorm:"column:size_bytes;not null"`
}

func (MemoAttachmentEntity) TableName() string {
	return "memo_attachments"
}

func toMemoModel(e *MemoEntity) *model.Memo {
	m := &model.Memo{
		ID:         e.ID,
		AuthorID:   e.AuthorID,
		CustomerID: e.CustomerID,
		InvoiceID:  e.InvoiceID,
		TicketID:   e.TicketID,
		Body:       e.Body,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
	for _, a := range e.Attachments {
		m.Attachments = append(m.Attachments, toMemoAttachmentModel(a))
	}
	return m
}

func toMemoAttachmentModel(e *MemoAttachmentEntity) model.MemoAttachment {
	return model.MemoAttachment{
		ID:         e.ID,
		MemoID:     e.MemoID,
		StorageKey: e.StorageKey,
		FileName:   e.FileName,
		MimeType:   e.MimeType,
		SizeBytes:  e.SizeBytes,
		CreatedAt:  e.CreatedAt,
	}
}
