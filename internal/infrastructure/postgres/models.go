package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	domcoupon "github.com/namprobe/NekoViBE-sub001/internal/domain/coupon"
	domorder "github.com/namprobe/NekoViBE-sub001/internal/domain/order"
	dompayment "github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
	domproduct "github.com/namprobe/NekoViBE-sub001/internal/domain/product"
	domshipping "github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
	domuser "github.com/namprobe/NekoViBE-sub001/internal/domain/user"
)

// Row types mirror the domain entities one table each. Monetary columns are
// decimal(18,2); identifiers are uuid strings.

type orderRow struct {
	ID               string `gorm:"primaryKey;type:varchar(64)"`
	UserID           string `gorm:"type:varchar(64);index"`
	RecipientName    string `gorm:"type:varchar(255)"`
	RecipientPhone   string `gorm:"type:varchar(32)"`
	RecipientEmail   string `gorm:"type:varchar(255)"`
	RecipientAddress string `gorm:"type:text"`

	Items []orderItemRow `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	TotalAmount    decimal.Decimal `gorm:"not null;type:decimal(18,2)"`
	DiscountAmount decimal.Decimal `gorm:"not null;type:decimal(18,2)"`
	TaxAmount      decimal.Decimal `gorm:"not null;type:decimal(18,2)"`
	FinalAmount    decimal.Decimal `gorm:"not null;type:decimal(18,2)"`

	Status        string `gorm:"not null;type:varchar(32);index"`
	PaymentStatus string `gorm:"not null;type:varchar(32)"`

	CouponCode   string `gorm:"type:varchar(64)"`
	UserCouponID string `gorm:"type:varchar(64)"`

	ShippingMethodID string `gorm:"type:varchar(64)"`

	Notes     string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (orderRow) TableName() string { return "orders" }

type orderItemRow struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	OrderID     string `gorm:"not null;type:varchar(64);index"`
	ProductID   string `gorm:"not null;type:varchar(64)"`
	ProductName string `gorm:"not null;type:varchar(255)"`
	Quantity    int    `gorm:"not null"`

	UnitPrice decimal.Decimal `gorm:"not null;type:decimal(18,2)"`
	Discount  decimal.Decimal `gorm:"not null;type:decimal(18,2)"`
}

func (orderItemRow) TableName() string { return "order_items" }

type paymentRow struct {
	ID            string          `gorm:"primaryKey;type:varchar(64)"`
	OrderID       string          `gorm:"not null;type:varchar(64);uniqueIndex"`
	Method        string          `gorm:"not null;type:varchar(32)"`
	Amount        decimal.Decimal `gorm:"not null;type:decimal(18,2)"`
	Status        string          `gorm:"not null;type:varchar(32)"`
	TransactionID string          `gorm:"type:varchar(128)"`
	RawResponse   string          `gorm:"type:text"`
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (paymentRow) TableName() string { return "payments" }

type productRow struct {
	ID            string          `gorm:"primaryKey;type:varchar(64)"`
	Name          string          `gorm:"not null;type:varchar(255)"`
	Price         decimal.Decimal `gorm:"not null;type:decimal(18,2)"`
	SalePrice     decimal.Decimal `gorm:"not null;type:decimal(18,2)"`
	StockQuantity int             `gorm:"not null"`
	Active        bool            `gorm:"not null"`
	UpdatedAt     time.Time
}

func (productRow) TableName() string { return "products" }

type couponRow struct {
	Code           string          `gorm:"primaryKey;type:varchar(64)"`
	DiscountType   string          `gorm:"not null;type:varchar(32)"`
	DiscountValue  decimal.Decimal `gorm:"not null;type:decimal(18,2)"`
	MinOrderAmount decimal.Decimal `gorm:"not null;type:decimal(18,2)"`
	ValidFrom      time.Time
	ValidTo        time.Time
	UsageLimit     int  `gorm:"not null"`
	CurrentUsage   int  `gorm:"not null"`
	Active         bool `gorm:"not null"`
	UpdatedAt      time.Time
}

func (couponRow) TableName() string { return "coupons" }

type userCouponRow struct {
	ID         string `gorm:"primaryKey;type:varchar(64)"`
	UserID     string `gorm:"not null;type:varchar(64);index"`
	CouponCode string `gorm:"not null;type:varchar(64);index"`
	OrderID    string `gorm:"type:varchar(64);index"`
	UsedDate   *time.Time
	UpdatedAt  time.Time
}

func (userCouponRow) TableName() string { return "user_coupons" }

type shippingMethodRow struct {
	ID           string `gorm:"primaryKey;type:varchar(64)"`
	Name         string `gorm:"not null;type:varchar(255)"`
	ProviderCode string `gorm:"not null;type:varchar(32)"`
	Active       bool   `gorm:"not null"`
}

func (shippingMethodRow) TableName() string { return "shipping_methods" }

type orderShipmentRow struct {
	OrderID        string          `gorm:"primaryKey;type:varchar(64)"`
	MethodID       string          `gorm:"not null;type:varchar(64)"`
	TrackingNumber string          `gorm:"type:varchar(64);index"`
	Fee            decimal.Decimal `gorm:"not null;type:decimal(18,2)"`
	ShippedDate    *time.Time
	DeliveredDate  *time.Time
	UpdatedAt      time.Time
}

func (orderShipmentRow) TableName() string { return "order_shipments" }

type userRow struct {
	ID      string `gorm:"primaryKey;type:varchar(64)"`
	Name    string `gorm:"not null;type:varchar(255)"`
	Email   string `gorm:"type:varchar(255)"`
	Phone   string `gorm:"type:varchar(32)"`
	Address string `gorm:"type:text"`
	Active  bool   `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

func orderToRow(o *domorder.Order) *orderRow {
	row := &orderRow{
		ID:               o.ID,
		UserID:           o.UserID,
		RecipientName:    o.RecipientName,
		RecipientPhone:   o.RecipientPhone,
		RecipientEmail:   o.RecipientEmail,
		RecipientAddress: o.RecipientAddress,
		TotalAmount:      o.TotalAmount,
		DiscountAmount:   o.DiscountAmount,
		TaxAmount:        o.TaxAmount,
		FinalAmount:      o.FinalAmount,
		Status:           string(o.Status),
		PaymentStatus:    string(o.PaymentStatus),
		CouponCode:       o.CouponCode,
		UserCouponID:     o.UserCouponID,
		ShippingMethodID: o.ShippingMethodID,
		Notes:            o.Notes,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	for _, it := range o.Items {
		row.Items = append(row.Items, orderItemRow{
			OrderID:     o.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Discount:    it.Discount,
		})
	}
	return row
}

func rowToOrder(row *orderRow) *domorder.Order {
	o := &domorder.Order{
		ID:               row.ID,
		UserID:           row.UserID,
		RecipientName:    row.RecipientName,
		RecipientPhone:   row.RecipientPhone,
		RecipientEmail:   row.RecipientEmail,
		RecipientAddress: row.RecipientAddress,
		TotalAmount:      row.TotalAmount,
		DiscountAmount:   row.DiscountAmount,
		TaxAmount:        row.TaxAmount,
		FinalAmount:      row.FinalAmount,
		Status:           domorder.Status(row.Status),
		PaymentStatus:    dompayment.Status(row.PaymentStatus),
		CouponCode:       row.CouponCode,
		UserCouponID:     row.UserCouponID,
		ShippingMethodID: row.ShippingMethodID,
		Notes:            row.Notes,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	for _, it := range row.Items {
		o.Items = append(o.Items, domorder.Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Discount:    it.Discount,
		})
	}
	return o
}

func paymentToRow(p *dompayment.Payment) *paymentRow {
	return &paymentRow{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Method:        string(p.Method),
		Amount:        p.Amount,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		RawResponse:   p.RawResponse,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func rowToPayment(row *paymentRow) *dompayment.Payment {
	return &dompayment.Payment{
		ID:            row.ID,
		OrderID:       row.OrderID,
		Method:        dompayment.Method(row.Method),
		Amount:        row.Amount,
		Status:        dompayment.Status(row.Status),
		TransactionID: row.TransactionID,
		RawResponse:   row.RawResponse,
		PaidAt:        row.PaidAt,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func productToRow(p *domproduct.Product) *productRow {
	return &productRow{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		SalePrice:     p.SalePrice,
		StockQuantity: p.StockQuantity,
		Active:        p.Active,
		UpdatedAt:     p.UpdatedAt,
	}
}

func rowToProduct(row *productRow) *domproduct.Product {
	return &domproduct.Product{
		ID:            row.ID,
		Name:          row.Name,
		Price:         row.Price,
		SalePrice:     row.SalePrice,
		StockQuantity: row.StockQuantity,
		Active:        row.Active,
		UpdatedAt:     row.UpdatedAt,
	}
}

func couponToRow(c *domcoupon.Coupon) *couponRow {
	return &couponRow{
		Code:           c.Code,
		DiscountType:   string(c.DiscountType),
		DiscountValue:  c.DiscountValue,
		MinOrderAmount: c.MinOrderAmount,
		ValidFrom:      c.ValidFrom,
		ValidTo:        c.ValidTo,
		UsageLimit:     c.UsageLimit,
		CurrentUsage:   c.CurrentUsage,
		Active:         c.Active,
		UpdatedAt:      c.UpdatedAt,
	}
}

func rowToCoupon(row *couponRow) *domcoupon.Coupon {
	return &domcoupon.Coupon{
		Code:           row.Code,
		DiscountType:   domcoupon.DiscountType(row.DiscountType),
		DiscountValue:  row.DiscountValue,
		MinOrderAmount: row.MinOrderAmount,
		ValidFrom:      row.ValidFrom,
		ValidTo:        row.ValidTo,
		UsageLimit:     row.UsageLimit,
		CurrentUsage:   row.CurrentUsage,
		Active:         row.Active,
		UpdatedAt:      row.UpdatedAt,
	}
}

func userCouponToRow(g *domcoupon.UserCoupon) *userCouponRow {
	return &userCouponRow{
		ID:         g.ID,
		UserID:     g.UserID,
		CouponCode: g.CouponCode,
		OrderID:    g.OrderID,
		UsedDate:   g.UsedDate,
		UpdatedAt:  g.UpdatedAt,
	}
}

func rowToUserCoupon(row *userCouponRow) *domcoupon.UserCoupon {
	return &domcoupon.UserCoupon{
		ID:         row.ID,
		UserID:     row.UserID,
		CouponCode: row.CouponCode,
		OrderID:    row.OrderID,
		UsedDate:   row.UsedDate,
		UpdatedAt:  row.UpdatedAt,
	}
}

func shipmentToRow(s *domshipping.OrderShipment) *orderShipmentRow {
	return &orderShipmentRow{
		OrderID:        s.OrderID,
		MethodID:       s.MethodID,
		TrackingNumber: s.TrackingNumber,
		Fee:            s.Fee,
		ShippedDate:    s.ShippedDate,
		DeliveredDate:  s.DeliveredDate,
		UpdatedAt:      s.UpdatedAt,
	}
}

func rowToShipment(row *orderShipmentRow) *domshipping.OrderShipment {
	return &domshipping.OrderShipment{
		OrderID:        row.OrderID,
		MethodID:       row.MethodID,
		TrackingNumber: row.TrackingNumber,
		Fee:            row.Fee,
		ShippedDate:    row.ShippedDate,
		DeliveredDate:  row.DeliveredDate,
		UpdatedAt:      row.UpdatedAt,
	}
}

func rowToMethod(row *shippingMethodRow) *domshipping.Method {
	return &domshipping.Method{
		ID:           row.ID,
		Name:         row.Name,
		ProviderCode: row.ProviderCode,
		Active:       row.Active,
	}
}

func rowToUser(row *userRow) *domuser.User {
	return &domuser.User{
		ID:      row.ID,
		Name:    row.Name,
		Email:   row.Email,
		Phone:   row.Phone,
		Address: row.Address,
		Active:  row.Active,
	}
}
