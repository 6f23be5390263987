package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Repository is the persistence surface for orders and their timelines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	ExistsByNumber(ctx context.Context, orderNumber string) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	AppendPaymentHistory(ctx context.Context, entry *models.OrderPaymentHistory) error
	List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	SoftDeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ListFilter narrows an order listing. Owner restricts to one customer; the
// admin listing leaves it zero.
type ListFilter struct {
	Owner         types.Owner
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	Search        string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items", "StatusHistory", "PaymentHistory").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) ExistsByNumber(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error
	return count > 0, err
}

// FindByID loads a live order with its items and both timelines in
// chronological order.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Scopes(models.NotDeleted).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, product_name ASC") }).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("PaymentHistory", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CompareAndSetStatus moves the order only if it is still in the expected
// status. A false result means another writer got there first.
func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": r.db.NowFunc(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repository) AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) AppendPaymentHistory(ctx context.Context, entry *models.OrderPaymentHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns up to limit orders newest first, starting after cursor.
func (r *repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Scopes(models.NotDeleted).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, product_name ASC") })

	if !filter.Owner.IsZero() {
		query = query.Scopes(models.OwnedBy(filter.Owner))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("order_number LIKE ?", "%"+strings.ToUpper(search)+"%")
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at < ?", filter.CreatedTo.UTC())
	}
	if cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt.UTC(), cursor.CreatedAt.UTC(), cursor.ID)
	}

	var rows []models.Order
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// SoftDeleteTerminalBefore marks delivered, cancelled and refunded orders
// untouched since cutoff as deleted.
func (r *repository) SoftDeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	terminal := []enums.OrderStatus{
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
		enums.OrderStatusRefunded,
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("deleted_at IS NULL AND status IN ? AND updated_at < ?", terminal, cutoff.UTC()).
		UpdateColumn("deleted_at", r.db.NowFunc())
	return res.RowsAffected, res.Error
}
