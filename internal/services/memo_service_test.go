package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/nimasrn/ar-collections/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// smallest valid PNG header plus an IHDR chunk start
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

func newTestMemoService(withStore bool) (*MemoService, *MockMemoRepository, *MockObjectStore) {
	memos := new(MockMemoRepository)
	store := new(MockObjectStore)
	activity := new(MockActivityRecorder)
	activity.On("Log", mock.Anything, mock.Anything).Maybe()
	if !withStore {
		return NewMemoService(memos, nil, activity), memos, store
	}
	return NewMemoService(memos, store, activity), memos, store
}

func TestMemoService_Create(t *testing.T) {
	ctx := context.Background()
	s, memos, _ := newTestMemoService(true)
	actor := testActor(model.RoleCollector)

	_, err := s.Create(ctx, actor, CreateMemoInput{Body: "hello"})
	assert.ErrorIs(t, err, ErrMemoWithoutSubject)

	customer := uuid.New()
	memos.On("Create", ctx, &model.Memo{AuthorID: actor.ID, CustomerID: &customer, Body: "spoke to AP"}).
		Return(&model.Memo{ID: uuid.New(), Body: "spoke to AP"}, nil)
	memo, err := s.Create(ctx, actor, CreateMemoInput{CustomerID: &customer, Body: " spoke to AP "})
	require.NoError(t, err)
	assert.Equal(t, "spoke to AP", memo.Body)
}

func TestMemoService_Attach(t *testing.T) {
	ctx := context.Background()
	actor := testActor(model.RoleCollector)
	memoID := uuid.New()

	t.Run("storage not configured", func(t *testing.T) {
		s, _, _ := newTestMemoService(false)
		_, err := s.Attach(ctx, actor, memoID, "a.png", pngBytes)
		assert.ErrorIs(t, err, ErrStorageNotConfigured)
	})

	t.Run("limits", func(t *testing.T) {
		s, _, store := newTestMemoService(true)
		_, err := s.Attach(ctx, actor, memoID, "a.png", nil)
		assert.ErrorIs(t, err, ErrEmptyAttachment)

		_, err = s.Attach(ctx, actor, memoID, "big.png", bytes.Repeat([]byte{0}, model.MaxAttachmentSize+1))
		assert.ErrorIs(t, err, ErrAttachmentTooLarge)

		_, err = s.Attach(ctx, actor, memoID, "evil.png", []byte("#!/bin/sh\nrm -rf /\n"))
		assert.ErrorIs(t, err, ErrAttachmentType)

		_, err = s.Attach(ctx, actor, memoID, "doc.pdf", []byte("%PDF-1.7\n"))
		assert.ErrorIs(t, err, ErrAttachmentType)
		store.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stores sniffed image", func(t *testing.T) {
		s, memos, store := newTestMemoService(true)
		memos.On("Get", ctx, memoID).Return(&model.Memo{ID: memoID}, nil)
		store.On("PutObject", ctx, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "memos/"+memoID.String()+"/") && strings.HasSuffix(key, ".png")
		}), "image/png", pngBytes).Return(nil)
		memos.On("AddAttachment", ctx, mock.MatchedBy(func(a *model.MemoAttachment) bool {
			return a.MimeType == "image/png" && a.FileName == "receipt.png" && a.SizeBytes == int64(len(pngBytes))
		})).Return(&model.MemoAttachment{ID: uuid.New(), MimeType: "image/png"}, nil)

		att, err := s.Attach(ctx, actor, memoID, "../../receipt.png", pngBytes)
		require.NoError(t, err)
		assert.Equal(t, "image/png", att.MimeType)
	})

	t.Run("object is removed when the row fails", func(t *testing.T) {
		s, memos, store := newTestMemoService(true)
		memos.On("Get", ctx, memoID).Return(&model.Memo{ID: memoID}, nil)
		store.On("PutObject", mock.Anything, mock.Anything, "image/png", pngBytes).Return(nil)
		memos.On("AddAttachment", ctx, mock.Anything).Return(nil, errors.New("insert failed"))
		store.On("DeleteObject", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := s.Attach(ctx, actor, memoID, "a.png", pngBytes)
		assert.EqualError(t, err, "insert failed")
		store.AssertExpectations(t)
	})
}

func TestMemoService_GetSignsAttachments(t *testing.T) {
	ctx := context.Background()
	s, memos, store := newTestMemoService(true)
	id := uuid.New()
	memos.On("Get", ctx, id).Return(&model.Memo{ID: id, Attachments: []model.MemoAttachment{{StorageKey: "memos/x/1.png"}}}, nil)
	store.On("DownloadURL", ctx, "memos/x/1.png").Return("https://files.test/memos/x/1.png?sig=1", nil)

	memo, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://files.test/memos/x/1.png?sig=1", memo.Attachments[0].DownloadURL)
}
