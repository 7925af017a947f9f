package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domcoupon "github.com/namprobe/NekoViBE-sub001/internal/domain/coupon"
	domorder "github.com/namprobe/NekoViBE-sub001/internal/domain/order"
	dompayment "github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
	domproduct "github.com/namprobe/NekoViBE-sub001/internal/domain/product"
	domshipping "github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
	domuser "github.com/namprobe/NekoViBE-sub001/internal/domain/user"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domorder.Order) error {
	row := orderToRow(order)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domorder.ErrConflict
		}
		return fmt.Errorf("postgres: insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domorder.Order, error) {
	var row orderRow
	err := r.db.WithContext(ctx).Preload("Items").First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domorder.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get order: %w", err)
	}
	return rowToOrder(&row), nil
}

// FindProcessing is the guarded read behind callback idempotency: the row
// qualifies only while still in processing, and the row lock holds off a
// concurrent duplicate callback until this transaction settles.
func (r *OrderRepository) FindProcessing(ctx context.Context, id string) (*domorder.Order, error) {
	var row orderRow
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items").
		First(&row, "id = ? AND status = ?", id, string(domorder.StatusProcessing)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domorder.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find processing order: %w", err)
	}
	return rowToOrder(&row), nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domorder.Order) error {
	row := orderToRow(order)
	res := r.db.WithContext(ctx).Model(&orderRow{}).Where("id = ?", order.ID).
		Select("*").Omit("id", "created_at", "Items").Updates(row)
	if res.Error != nil {
		return fmt.Errorf("postgres: update order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domorder.ErrNotFound
	}
	return nil
}

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Insert(ctx context.Context, payment *dompayment.Payment) error {
	if err := r.db.WithContext(ctx).Create(paymentToRow(payment)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dompayment.ErrConflict
		}
		return fmt.Errorf("postgres: insert payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*dompayment.Payment, error) {
	var row paymentRow
	err := r.db.WithContext(ctx).First(&row, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dompayment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get payment: %w", err)
	}
	return rowToPayment(&row), nil
}

func (r *PaymentRepository) Update(ctx context.Context, payment *dompayment.Payment) error {
	res := r.db.WithContext(ctx).Model(&paymentRow{}).Where("id = ?", payment.ID).
		Select("*").Omit("id", "created_at").Updates(paymentToRow(payment))
	if res.Error != nil {
		return fmt.Errorf("postgres: update payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return dompayment.ErrNotFound
	}
	return nil
}

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domproduct.Product, error) {
	var row productRow
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domproduct.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get product: %w", err)
	}
	return rowToProduct(&row), nil
}

func (r *ProductRepository) Update(ctx context.Context, product *domproduct.Product) error {
	res := r.db.WithContext(ctx).Model(&productRow{}).Where("id = ?", product.ID).
		Select("*").Omit("id").Updates(productToRow(product))
	if res.Error != nil {
		return fmt.Errorf("postgres: update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domproduct.ErrNotFound
	}
	return nil
}

type CouponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) GetCoupon(ctx context.Context, code string) (*domcoupon.Coupon, error) {
	var row couponRow
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domcoupon.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get coupon: %w", err)
	}
	return rowToCoupon(&row), nil
}

func (r *CouponRepository) UpdateCoupon(ctx context.Context, coupon *domcoupon.Coupon) error {
	res := r.db.WithContext(ctx).Model(&couponRow{}).Where("code = ?", coupon.Code).
		Select("*").Omit("code").Updates(couponToRow(coupon))
	if res.Error != nil {
		return fmt.Errorf("postgres: update coupon: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domcoupon.ErrNotFound
	}
	return nil
}

func (r *CouponRepository) GetUserCoupon(ctx context.Context, userID, code string) (*domcoupon.UserCoupon, error) {
	var row userCouponRow
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "user_id = ? AND coupon_code = ?", userID, code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domcoupon.ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get user coupon: %w", err)
	}
	return rowToUserCoupon(&row), nil
}

func (r *CouponRepository) FindUserCouponByOrder(ctx context.Context, orderID string) (*domcoupon.UserCoupon, error) {
	if orderID == "" {
		return nil, domcoupon.ErrGrantNotFound
	}
	var row userCouponRow
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domcoupon.ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find user coupon by order: %w", err)
	}
	return rowToUserCoupon(&row), nil
}

func (r *CouponRepository) UpdateUserCoupon(ctx context.Context, grant *domcoupon.UserCoupon) error {
	res := r.db.WithContext(ctx).Model(&userCouponRow{}).Where("id = ?", grant.ID).
		Select("*").Omit("id").Updates(userCouponToRow(grant))
	if res.Error != nil {
		return fmt.Errorf("postgres: update user coupon: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domcoupon.ErrGrantNotFound
	}
	return nil
}

type ShippingRepository struct {
	db *gorm.DB
}

func NewShippingRepository(db *gorm.DB) *ShippingRepository {
	return &ShippingRepository{db: db}
}

func (r *ShippingRepository) GetMethod(ctx context.Context, id string) (*domshipping.Method, error) {
	var row shippingMethodRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domshipping.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get shipping method: %w", err)
	}
	return rowToMethod(&row), nil
}

func (r *ShippingRepository) InsertShipment(ctx context.Context, shipment *domshipping.OrderShipment) error {
	if err := r.db.WithContext(ctx).Create(shipmentToRow(shipment)).Error; err != nil {
		return fmt.Errorf("postgres: insert shipment: %w", err)
	}
	return nil
}

func (r *ShippingRepository) GetShipmentByOrderID(ctx context.Context, orderID string) (*domshipping.OrderShipment, error) {
	var row orderShipmentRow
	err := r.db.WithContext(ctx).First(&row, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domshipping.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get shipment: %w", err)
	}
	return rowToShipment(&row), nil
}

func (r *ShippingRepository) GetShipmentByTracking(ctx context.Context, trackingNumber string) (*domshipping.OrderShipment, error) {
	if trackingNumber == "" {
		return nil, domshipping.ErrNotFound
	}
	var row orderShipmentRow
	err := r.db.WithContext(ctx).First(&row, "tracking_number = ?", trackingNumber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domshipping.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get shipment by tracking: %w", err)
	}
	return rowToShipment(&row), nil
}

func (r *ShippingRepository) UpdateShipment(ctx context.Context, shipment *domshipping.OrderShipment) error {
	res := r.db.WithContext(ctx).Model(&orderShipmentRow{}).Where("order_id = ?", shipment.OrderID).
		Select("*").Omit("order_id").Updates(shipmentToRow(shipment))
	if res.Error != nil {
		return fmt.Errorf("postgres: update shipment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domshipping.ErrNotFound
	}
	return nil
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domuser.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domuser.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get user: %w", err)
	}
	return rowToUser(&row), nil
}
