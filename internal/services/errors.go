package services

import "errors"

var (
	ErrInvalidColorStatus   = errors.New("unknown color status")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrUnknownInvoice       = errors.New("one or more invoices do not exist")
	ErrTicketClosed         = errors.New("ticket is not open")
	ErrInvalidCollector     = errors.New("assignee is not an active collector")
	ErrInvalidMerge         = errors.New("merge needs at least one source ticket other than the target")
	ErrLastAdmin            = errors.New("the last active admin cannot be demoted or deactivated")
	ErrAlreadyApproved      = errors.New("profile is already approved")
	ErrEmailTaken           = errors.New("email is linked to another account")
	ErrAttachmentTooLarge   = errors.New("attachment exceeds the size limit")
	ErrAttachmentType       = errors.New("attachment type is not allowed")
	ErrEmptyAttachment      = errors.New("attachment is empty")
	ErrMemoWithoutSubject   = errors.New("memo needs a customer, invoice or ticket")
	ErrStorageNotConfigured = errors.New("attachment storage is not configured")
)
