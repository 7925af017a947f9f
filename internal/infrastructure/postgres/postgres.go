package postgres

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/namprobe/NekoViBE-sub001/internal/storage"
)

// Open connects and migrates the schema.
func Open(host, port, user, password, dbname string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := db.AutoMigrate(
		&userRow{},
		&productRow{},
		&couponRow{},
		&userCouponRow{},
		&shippingMethodRow{},
		&orderRow{},
		&orderItemRow{},
		&paymentRow{},
		&orderShipmentRow{},
	); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return db, nil
}

// UnitOfWork runs the given function inside one database transaction, with
// every repository bound to the transactional handle. gorm commits on nil,
// rolls back on error or panic.
type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return u.db.WithContext(ctx).Transaction(func(txdb *gorm.DB) error {
		tx := storage.Tx{
			Orders:    NewOrderRepository(txdb),
			Payments:  NewPaymentRepository(txdb),
			Products:  NewProductRepository(txdb),
			Coupons:   NewCouponRepository(txdb),
			Shipments: NewShippingRepository(txdb),
			Users:     NewUserRepository(txdb),
		}
		return fn(ctx, tx)
	})
}
