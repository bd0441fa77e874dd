package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// MaxAttachmentSize is the upper bound for a single memo attachment.
const MaxAttachmentSize = 10 << 20

var allowedAttachmentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
	"audio/mpeg": {},
	"audio/wav":  {},
	"audio/webm": {},
	"audio/ogg":  {},
	"audio/mp4":  {},
	// browser voice recordings are sniffed as webm video
	"video/webm": {},
}

func IsAllowedAttachmentType(mime string) bool {
	_, ok := allowedAttachmentTypes[mime]
	return ok
}

func AllowedAttachmentTypes() []string {
	out := make([]string, 0, len(allowedAttachmentTypes))
	for t := range allowedAttachmentTypes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

type Memo struct {
	ID          uuid.UUID        `json:"id"`
	AuthorID    uuid.UUID        `json:"author_id"`
	CustomerID  *uuid.UUID       `json:"customer_id"`
	InvoiceID   *uuid.UUID       `json:"invoice_id"`
	TicketID    *uuid.UUID       `json:"ticket_id"`
	Body        string           `json:"body"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Attachments []MemoAttachment `json:"attachments,omitempty"`
}

type MemoAttachment struct {
	ID          uuid.UUID `json:"id"`
	MemoID      uuid.UUID `json:"memo_id"`
	StorageKey  string    `json:"storage_key"`
	FileName    string    `json:"file_name"`
	MimeType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
	DownloadURL string    `json:"download_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type MemoFilter struct {
	CustomerID *uuid.UUID
	InvoiceID  *uuid.UUID
	TicketID   *uuid.UUID
	Limit      int
	Offset     int
}
