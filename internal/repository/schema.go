package repository

import (
	"github.com/nimasrn/ar-collections/internal/model"
	"gorm.io/gorm"
)

// AllEntities lists every table the repositories touch, in creation order.
func AllEntities() []any {
	return []any{
		&ColorStatusOptionEntity{},
		&UserProfileEntity{},
		&CustomerEntity{},
		&InvoiceEntity{},
		&InvoiceStatusChangeEntity{},
		&PaymentEntity{},
		&PaymentApplicationEntity{},
		&TicketEntity{},
		&TicketInvoiceEntity{},
		&TicketMergeEventEntity{},
		&TicketActivityEntity{},
		&AutoTicketRuleEntity{},
		&ReminderEntity{},
		&MemoEntity{},
		&MemoAttachmentEntity{},
		&ScheduledEmailEntity{},
		&FunctionCredentialEntity{},
		&SyncRunEntity{},
		&SyncChangeLogEntity{},
		&UserActivityLogEntity{},
	}
}

// SeedColorStatuses inserts the four system color options.
func SeedColorStatuses(db *gorm.DB) error {
	options := []*ColorStatusOptionEntity{
		{Value: model.ColorRed, Label: "Red", SortOrder: 10, IsSystem: true},
		{Value: model.ColorOrange, Label: "Orange", SortOrder: 20, IsSystem: true},
		{Value: model.ColorYellow, Label: "Yellow", SortOrder: 30, IsSystem: true},
		{Value: model.ColorGreen, Label: "Green", SortOrder: 40, IsSystem: true},
	}
	return db.Create(options).Error
}
