package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/nimasrn/ar-collections/pkg/pg"
	"gorm.io/gorm"
)

var ErrMemoNotFound = errors.New("memo not found")

type MemoRepository struct {
	*pg.DB
}

func NewMemoRepository(db *pg.DB) *MemoRepository {
	return &MemoRepository{db}
}

func (r *MemoRepository) Create(ctx context.Context, m *model.Memo) (*model.Memo, error) {
	e := &MemoEntity{
		AuthorID:   m.AuthorID,
		CustomerID: m.CustomerID,
		InvoiceID:  m.InvoiceID,
		TicketID:   m.TicketID,
		Body:       m.Body,
	}
	if err := r.Write(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return toMemoModel(e), nil
}

func (r *MemoRepository) Get(ctx context.Context, id uuid.UUID) (*model.Memo, error) {
	var e MemoEntity
	if err := r.Read(ctx).Preload("Attachments").First(&e, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemoNotFound
		}
		return nil, err
	}
	return toMemoModel(&e), nil
}

func (r *MemoRepository) AddAttachment(ctx context.Context, a *model.MemoAttachment) (*model.MemoAttachment, error) {
	e := &MemoAttachmentEntity{
		MemoID:     a.MemoID,
		StorageKey: a.StorageKey,
		FileName:   a.FileName,
		MimeType:   a.MimeType,
		SizeBytes:  a.SizeBytes,
	}
	if err := r.Write(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	out := toMemoAttachmentModel(e)
	return &out, nil
}

func (r *MemoRepository) List(ctx context.Context, f model.MemoFilter) (model.Page[model.Memo], error) {
	limit, offset := model.ClampPage(f.Limit, f.Offset)
	page := model.Page[model.Memo]{Limit: limit, Offset: offset, Items: []model.Memo{}}

	q := r.Read(ctx).Model(&MemoEntity{})
	if f.CustomerID != nil {
		q = q.Where("customer_id = ?", *f.CustomerID)
	}
	if f.InvoiceID != nil {
		q = q.Where("invoice_id = ?", *f.InvoiceID)
	}
	if f.TicketID != nil {
		q = q.Where("ticket_id = ?", *f.TicketID)
	}
	if err := q.Count(&page.Total).Error; err != nil {
		return page, err
	}

	var entities []*MemoEntity
	if err := q.Preload("Attachments").Order("created_at DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return page, err
	}
	for _, e := range entities {
		page.Items = append(page.Items, *toMemoModel(e))
	}
	return page, nil
}
