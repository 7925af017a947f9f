package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domcart "github.com/namprobe/NekoViBE-sub001/internal/domain/cart"
	domcoupon "github.com/namprobe/NekoViBE-sub001/internal/domain/coupon"
	domorder "github.com/namprobe/NekoViBE-sub001/internal/domain/order"
	dompayment "github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
	domproduct "github.com/namprobe/NekoViBE-sub001/internal/domain/product"
	domshipping "github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
	domuser "github.com/namprobe/NekoViBE-sub001/internal/domain/user"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/memory"
)

type fakeGateway struct {
	method      dompayment.Method
	redirectURL string
	createErr   error
	intents     []dompayment.Intent
}

func (f *fakeGateway) Method() dompayment.Method { return f.method }

func (f *fakeGateway) CreateIntent(_ context.Context, intent dompayment.Intent) (*dompayment.IntentResult, error) {
	f.intents = append(f.intents, intent)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &dompayment.IntentResult{RedirectURL: f.redirectURL}, nil
}

func (f *fakeGateway) VerifyCallback(dompayment.Callback) (*dompayment.CallbackResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeGateway) BuildSignature(map[string]string) string { return "" }

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

type fixture struct {
	uow       *memory.UnitOfWork
	orders    *memory.OrderRepository
	payments  *memory.PaymentRepository
	products  *memory.ProductRepository
	coupons   *memory.CouponRepository
	shipments *memory.ShippingRepository
	users     *memory.UserRepository
	carts     *memory.CartRepository
	gateway   *fakeGateway
	uc        *PlaceOrderUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		orders:    memory.NewOrderRepository(),
		payments:  memory.NewPaymentRepository(),
		products:  memory.NewProductRepository(),
		coupons:   memory.NewCouponRepository(),
		shipments: memory.NewShippingRepository(),
		users:     memory.NewUserRepository(),
		carts:     memory.NewCartRepository(),
		gateway:   &fakeGateway{method: dompayment.MethodVNPay, redirectURL: "https://pay.example/redirect"},
	}
	f.uow = memory.NewUnitOfWork(f.orders, f.payments, f.products, f.coupons, f.shipments, f.users)

	f.users.Seed(&domuser.User{
		ID: "u1", Name: "An", Phone: "0901", Email: "an@example.com", Address: "1 Street", Active: true,
	})
	f.products.Seed(&domproduct.Product{
		ID: "p1", Name: "Mug", Price: decimal.NewFromInt(100), StockQuantity: 10, Active: true,
	})
	f.shipments.SeedMethods(&domshipping.Method{
		ID: "m1", Name: "Standard", ProviderCode: "ghn", Active: true,
	})

	f.uc = NewPlaceOrderUseCase(
		f.uow,
		f.carts,
		dompayment.Registry{dompayment.MethodVNPay: f.gateway},
		&seqIDs{},
		nil,
		nil,
	)
	return f
}

func buyNowInput() PlaceOrderInput {
	return PlaceOrderInput{
		UserID:           "u1",
		ProductID:        "p1",
		Quantity:         2,
		PaymentMethod:    dompayment.MethodVNPay,
		ShippingMethodID: "m1",
	}
}

func TestPlaceOrderBuyNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.uc.Execute(ctx, buyNowInput())
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/redirect", result.RedirectURL)
	require.True(t, decimal.NewFromInt(200).Equal(result.FinalAmount))

	o, err := f.orders.Get(ctx, result.OrderID)
	require.NoError(t, err)
	require.Equal(t, domorder.StatusProcessing, o.Status)
	require.Equal(t, dompayment.StatusPending, o.PaymentStatus)
	require.Equal(t, "An", o.RecipientName, "contact is mirrored from the account")
	require.Len(t, o.Items, 1)
	require.Equal(t, 2, o.Items[0].Quantity)

	p, err := f.products.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, 8, p.StockQuantity)

	pmt, err := f.payments.GetByOrderID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, dompayment.StatusPending, pmt.Status)
	require.True(t, o.FinalAmount.Equal(pmt.Amount))

	sh, err := f.shipments.GetShipmentByOrderID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, "m1", sh.MethodID)
	require.Empty(t, sh.TrackingNumber, "shipment is opened with the carrier only after payment")

	require.Len(t, f.gateway.intents, 1)
	require.Equal(t, o.ID, f.gateway.intents[0].OrderID)
}

func TestPlaceOrderPercentageCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	f.coupons.Seed(
		[]*domcoupon.Coupon{{
			Code:           "SAVE10",
			DiscountType:   domcoupon.DiscountPercentage,
			DiscountValue:  decimal.NewFromInt(10),
			MinOrderAmount: decimal.NewFromInt(150),
			ValidFrom:      now.Add(-time.Hour),
			ValidTo:        now.Add(time.Hour),
			Active:         true,
		}},
		[]*domcoupon.UserCoupon{{ID: "g1", UserID: "u1", CouponCode: "SAVE10"}},
	)

	cmd := buyNowInput()
	cmd.CouponCode = "SAVE10"

	result, err := f.uc.Execute(ctx, cmd)
	require.NoError(t, err)
	// 2 x 100 = 200, minimum 150 met, 10% off -> 180
	require.True(t, decimal.NewFromInt(180).Equal(result.FinalAmount), "got %s", result.FinalAmount)

	grant, err := f.coupons.FindUserCouponByOrder(ctx, result.OrderID)
	require.NoError(t, err)
	require.True(t, grant.Used())
	require.Equal(t, result.OrderID, grant.OrderID)

	cp, err := f.coupons.GetCoupon(ctx, "SAVE10")
	require.NoError(t, err)
	require.Equal(t, 1, cp.CurrentUsage)
}

func TestPlaceOrderCouponBelowMinimum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	f.coupons.Seed(
		[]*domcoupon.Coupon{{
			Code:           "SAVE10",
			DiscountType:   domcoupon.DiscountPercentage,
			DiscountValue:  decimal.NewFromInt(10),
			MinOrderAmount: decimal.NewFromInt(500),
			ValidFrom:      now.Add(-time.Hour),
			ValidTo:        now.Add(time.Hour),
			Active:         true,
		}},
		[]*domcoupon.UserCoupon{{ID: "g1", UserID: "u1", CouponCode: "SAVE10"}},
	)

	cmd := buyNowInput()
	cmd.CouponCode = "SAVE10"

	_, err := f.uc.Execute(ctx, cmd)
	require.ErrorIs(t, err, domcoupon.ErrMinAmountNotMet)

	// The whole transaction rolled back: stock untouched, nothing persisted.
	p, getErr := f.products.Get(ctx, "p1")
	require.NoError(t, getErr)
	require.Equal(t, 10, p.StockQuantity)
	_, getErr = f.orders.Get(ctx, "id-1")
	require.ErrorIs(t, getErr, domorder.ErrNotFound)
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cmd := buyNowInput()
	cmd.Quantity = 11

	_, err := f.uc.Execute(ctx, cmd)
	require.ErrorIs(t, err, domproduct.ErrInsufficientStock)

	p, getErr := f.products.Get(ctx, "p1")
	require.NoError(t, getErr)
	require.Equal(t, 10, p.StockQuantity)
}

func TestPlaceOrderMissingRedirectURLAbortsPlacement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.redirectURL = ""

	_, err := f.uc.Execute(ctx, buyNowInput())
	require.ErrorIs(t, err, ErrMissingRedirectURL)

	p, getErr := f.products.Get(ctx, "p1")
	require.NoError(t, getErr)
	require.Equal(t, 10, p.StockQuantity, "stock reservation must roll back with the order")
	_, getErr = f.orders.Get(ctx, "id-1")
	require.ErrorIs(t, getErr, domorder.ErrNotFound)
}

func TestPlaceOrderCODSkipsGateway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cmd := buyNowInput()
	cmd.PaymentMethod = dompayment.MethodCOD

	result, err := f.uc.Execute(ctx, cmd)
	require.NoError(t, err)
	require.Empty(t, result.RedirectURL)
	require.Empty(t, f.gateway.intents)
}

func TestPlaceOrderFromCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.products.Seed(&domproduct.Product{
		ID: "p2", Name: "Plate", Price: decimal.NewFromInt(50), StockQuantity: 5, Active: true,
	})
	require.NoError(t, f.carts.AddItem(ctx, "u1", "p1", 1))
	require.NoError(t, f.carts.AddItem(ctx, "u1", "p2", 2))

	cmd := buyNowInput()
	cmd.ProductID = ""
	cmd.Quantity = 0

	result, err := f.uc.Execute(ctx, cmd)
	require.NoError(t, err)
	// 1 x 100 + 2 x 50 = 200
	require.True(t, decimal.NewFromInt(200).Equal(result.FinalAmount))

	o, err := f.orders.Get(ctx, result.OrderID)
	require.NoError(t, err)
	require.Len(t, o.Items, 2)

	_, err = f.carts.Get(ctx, "u1")
	require.ErrorIs(t, err, domcart.ErrNotFound, "cart is emptied after checkout")
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newFixture(t)

	cmd := buyNowInput()
	cmd.ProductID = ""
	cmd.Quantity = 0

	_, err := f.uc.Execute(context.Background(), cmd)
	require.ErrorIs(t, err, domcart.ErrNotFound)
}

func TestPlaceOrderGuestCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cmd := buyNowInput()
	cmd.UserID = ""
	cmd.GuestName = "Binh"
	cmd.GuestPhone = "0902"
	cmd.GuestAddress = "2 Street"

	result, err := f.uc.Execute(ctx, cmd)
	require.NoError(t, err)

	o, err := f.orders.Get(ctx, result.OrderID)
	require.NoError(t, err)
	require.Empty(t, o.UserID)
	require.Equal(t, "Binh", o.RecipientName)
}

func TestPlaceOrderGuestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cmd := buyNowInput()
	cmd.UserID = ""
	cmd.GuestName = "Binh"
	_, err := f.uc.Execute(ctx, cmd)
	require.ErrorIs(t, err, ErrGuestContactRequired)

	cmd.GuestPhone = "0902"
	cmd.GuestAddress = "2 Street"
	cmd.ProductID = ""
	_, err = f.uc.Execute(ctx, cmd)
	require.ErrorIs(t, err, ErrGuestCartCheckout)
}

func TestPlaceOrderGuestCouponRejected(t *testing.T) {
	f := newFixture(t)

	cmd := buyNowInput()
	cmd.UserID = ""
	cmd.GuestName = "Binh"
	cmd.GuestPhone = "0902"
	cmd.GuestAddress = "2 Street"
	cmd.CouponCode = "SAVE10"

	_, err := f.uc.Execute(context.Background(), cmd)
	require.ErrorIs(t, err, domcoupon.ErrNotOwned)
}

func TestPlaceOrderUnknownPaymentMethod(t *testing.T) {
	f := newFixture(t)

	cmd := buyNowInput()
	cmd.PaymentMethod = dompayment.MethodMoMo // not registered in this fixture

	_, err := f.uc.Execute(context.Background(), cmd)
	require.ErrorIs(t, err, dompayment.ErrUnknownGateway)
}

func TestPlaceOrderInactiveProduct(t *testing.T) {
	f := newFixture(t)
	f.products.Seed(&domproduct.Product{
		ID: "p-off", Name: "Retired", Price: decimal.NewFromInt(10), StockQuantity: 3, Active: false,
	})

	cmd := buyNowInput()
	cmd.ProductID = "p-off"

	_, err := f.uc.Execute(context.Background(), cmd)
	require.ErrorIs(t, err, domproduct.ErrInactive)
}

func TestPlaceOrderSalePriceDiscount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.products.Seed(&domproduct.Product{
		ID: "p-sale", Name: "Bowl", Price: decimal.NewFromInt(100), SalePrice: decimal.NewFromInt(80),
		StockQuantity: 5, Active: true,
	})

	cmd := buyNowInput()
	cmd.ProductID = "p-sale"
	cmd.Quantity = 3

	result, err := f.uc.Execute(ctx, cmd)
	require.NoError(t, err)
	// 3 x 100 list, 20 off per unit -> 240
	require.True(t, decimal.NewFromInt(240).Equal(result.FinalAmount), "got %s", result.FinalAmount)

	o, err := f.orders.Get(ctx, result.OrderID)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(300).Equal(o.TotalAmount))
	require.True(t, decimal.NewFromInt(60).Equal(o.DiscountAmount))
}
