package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/logger"
)

type MemoRepository interface {
	Create(ctx context.Context, m *model.Memo) (*model.Memo, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Memo, error)
	AddAttachment(ctx context.Context, a *model.MemoAttachment) (*model.MemoAttachment, error)
	List(ctx context.Context, f model.MemoFilter) (model.Page[model.Memo], error)
}

// ObjectStore is satisfied by *storage.Bucket.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) error
	DeleteObject(ctx context.Context, key string) error
	DownloadURL(ctx context.Context, key string) (string, error)
}

type CreateMemoInput struct {
	CustomerID *uuid.UUID
	InvoiceID  *uuid.UUID
	TicketID   *uuid.UUID
	Body       string
}

type MemoService struct {
	memos    MemoRepository
	store    ObjectStore
	activity ActivityRecorder
}

// NewMemoService accepts a nil store; attachments are then rejected.
func NewMemoService(memos MemoRepository, store ObjectStore, activity ActivityRecorder) *MemoService {
	return &MemoService{
		memos:    memos,
		store:    store,
		activity: recorderOrNoop(activity),
	}
}

func (s *MemoService) Create(ctx context.Context, actor *model.UserProfile, in CreateMemoInput) (*model.Memo, error) {
	if in.CustomerID == nil && in.InvoiceID == nil && in.TicketID == nil {
		return nil, ErrMemoWithoutSubject
	}
	in.Body = strings.TrimSpace(in.Body)
	if in.Body == "" {
		return nil, fmt.Errorf("%w: memo body is empty", ErrInvalidRequest)
	}

	memo, err := s.memos.Create(ctx, &model.Memo{
		AuthorID:   actor.ID,
		CustomerID: in.CustomerID,
		InvoiceID:  in.InvoiceID,
		TicketID:   in.TicketID,
		Body:       in.Body,
	})
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, userActivity(actor, "memo.create", "memo", memo.ID.String(), ""))
	return memo, nil
}

// Attach stores a file for the memo. The type is sniffed from the content,
// the client supplied name only contributes to the stored file name.
func (s *MemoService) Attach(ctx context.Context, actor *model.UserProfile, memoID uuid.UUID, fileName string, data []byte) (*model.MemoAttachment, error) {
	if s.store == nil {
		return nil, ErrStorageNotConfigured
	}
	if len(data) == 0 {
		return nil, ErrEmptyAttachment
	}
	if len(data) > model.MaxAttachmentSize {
		return nil, ErrAttachmentTooLarge
	}
	mime, ok := allowedMime(data)
	if !ok {
		return nil, ErrAttachmentType
	}

	if _, err := s.memos.Get(ctx, memoID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("memos/%s/%s%s", memoID, uuid.NewString(), mime.Extension())
	if err := s.store.PutObject(ctx, key, mime.String(), data); err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}

	att, err := s.memos.AddAttachment(ctx, &model.MemoAttachment{
		MemoID:     memoID,
		StorageKey: key,
		FileName:   cleanFileName(fileName, mime.Extension()),
		MimeType:   mime.String(),
		SizeBytes:  int64(len(data)),
	})
	if err != nil {
		if delErr := s.store.DeleteObject(context.WithoutCancel(ctx), key); delErr != nil {
			logger.Warn("orphaned attachment object", "key", key, "error", delErr)
		}
		return nil, err
	}
	s.activity.Log(ctx, userActivity(actor, "memo.attach", "memo", memoID.String(), att.MimeType))
	return att, nil
}

// allowedMime walks up the detected type's parents so aliases such as
// audio/x-wav still match the allowlist.
func allowedMime(data []byte) (*mimetype.MIME, bool) {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if model.IsAllowedAttachmentType(m.String()) {
			return m, true
		}
		for _, allowed := range model.AllowedAttachmentTypes() {
			if m.Is(allowed) {
				return m, true
			}
		}
	}
	return detected, false
}

func cleanFileName(name, ext string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "attachment" + ext
	}
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}

// Get returns the memo with a download link for every attachment.
func (s *MemoService) Get(ctx context.Context, id uuid.UUID) (*model.Memo, error) {
	memo, err := s.memos.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return memo, nil
	}
	for i := range memo.Attachments {
		url, err := s.store.DownloadURL(ctx, memo.Attachments[i].StorageKey)
		if err != nil {
			logger.Warn("failed to sign attachment url", "key", memo.Attachments[i].StorageKey, "error", err)
			continue
		}
		memo.Attachments[i].DownloadURL = url
	}
	return memo, nil
}

func (s *MemoService) List(ctx context.Context, f model.MemoFilter) (model.Page[model.Memo], error) {
	return s.memos.List(ctx, f)
}
