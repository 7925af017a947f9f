package shipment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domorder "github.com/namprobe/NekoViBE-sub001/internal/domain/order"
	dompayment "github.com/namprobe/NekoViBE-sub001/internal/domain/payment"
	domshipping "github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
	"github.com/namprobe/NekoViBE-sub001/internal/infrastructure/memory"
)

// fakeCarrier decodes a minimal webhook body and maps statuses the way a
// real adapter would.
type fakeCarrier struct{}

func (fakeCarrier) Code() string { return "ghn" }

func (fakeCarrier) Quote(context.Context, domshipping.QuoteRequest) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("not used")
}

func (fakeCarrier) CreateShipment(context.Context, domshipping.ShipmentRequest) (*domshipping.Shipment, error) {
	return nil, errors.New("not used")
}

func (fakeCarrier) HandleCallback(body []byte) (*domshipping.CallbackEvent, error) {
	var payload struct {
		Tracking string `json:"tracking"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return &domshipping.CallbackEvent{
		TrackingNumber: payload.Tracking,
		StatusCode:     payload.Status,
		StatusName:     payload.Status,
		Timestamp:      time.Now().UTC(),
	}, nil
}

func (fakeCarrier) MapStatus(statusCode string) domshipping.Transition {
	switch statusCode {
	case "picked", "delivering":
		return domshipping.TransitionShipping
	case "delivered":
		return domshipping.TransitionDelivered
	case "cancel":
		return domshipping.TransitionCancelled
	case "delivery_fail":
		return domshipping.TransitionFailed
	case "returned":
		return domshipping.TransitionReturned
	case "ready_to_pick":
		return domshipping.TransitionNone
	}
	return domshipping.TransitionUnknown
}

func (fakeCarrier) Cancel(context.Context, string) error { return errors.New("not used") }

type fixture struct {
	orders    *memory.OrderRepository
	shipments *memory.ShippingRepository
	uc        *CarrierCallbackUseCase
}

// newFixture builds a confirmed order with an open shipment, the state a
// carrier callback normally finds.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	orders := memory.NewOrderRepository()
	shipments := memory.NewShippingRepository()
	uow := memory.NewUnitOfWork(
		orders,
		memory.NewPaymentRepository(),
		memory.NewProductRepository(),
		memory.NewCouponRepository(),
		shipments,
		memory.NewUserRepository(),
	)

	ctx := context.Background()
	o, err := domorder.New("o1", "u1", []domorder.Item{
		{ProductID: "p1", ProductName: "Mug", Quantity: 1, UnitPrice: decimal.NewFromInt(100)},
	})
	require.NoError(t, err)
	require.NoError(t, o.Confirm())
	require.NoError(t, orders.Insert(ctx, o))

	sh := &domshipping.OrderShipment{OrderID: "o1", MethodID: "m1"}
	sh.SetTracking("TRK-1", decimal.NewFromInt(15))
	require.NoError(t, shipments.InsertShipment(ctx, sh))

	return &fixture{
		orders:    orders,
		shipments: shipments,
		uc:        NewCarrierCallbackUseCase(uow, nil, nil),
	}
}

func webhook(tracking, status string) []byte {
	b, _ := json.Marshal(map[string]string{"tracking": tracking, "status": status})
	return b
}

func TestCarrierCallbackMarksShipping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "delivering"))
	require.NoError(t, err)
	require.True(t, result.Transitioned)
	require.Equal(t, domorder.StatusShipping, result.OrderStatus)

	o, err := f.orders.Get(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, domorder.StatusShipping, o.Status)
	require.Contains(t, o.Notes, "delivering")

	sh, err := f.shipments.GetShipmentByTracking(ctx, "TRK-1")
	require.NoError(t, err)
	require.NotNil(t, sh.ShippedDate)
	require.Nil(t, sh.DeliveredDate)
}

func TestCarrierCallbackDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "delivering"))
	require.NoError(t, err)

	result, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "delivered"))
	require.NoError(t, err)
	require.True(t, result.Transitioned)
	require.Equal(t, domorder.StatusDelivered, result.OrderStatus)

	sh, err := f.shipments.GetShipmentByTracking(ctx, "TRK-1")
	require.NoError(t, err)
	require.NotNil(t, sh.DeliveredDate)
}

func TestCarrierCallbackDeliveredSkipsShippingLeg(t *testing.T) {
	// Some carriers report delivery without an intermediate event; the
	// machine admits Confirmed -> Delivered directly.
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "delivered"))
	require.NoError(t, err)
	require.True(t, result.Transitioned)
	require.Equal(t, domorder.StatusDelivered, result.OrderStatus)
}

func TestCarrierCallbackDuplicateDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "delivered"))
	require.NoError(t, err)

	sh, err := f.shipments.GetShipmentByTracking(ctx, "TRK-1")
	require.NoError(t, err)
	firstStamp := *sh.DeliveredDate

	result, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "delivered"))
	require.NoError(t, err)
	require.False(t, result.Transitioned, "replayed callback must not move the order again")
	require.Equal(t, domorder.StatusDelivered, result.OrderStatus)

	sh, err = f.shipments.GetShipmentByTracking(ctx, "TRK-1")
	require.NoError(t, err)
	require.Equal(t, firstStamp, *sh.DeliveredDate, "delivery timestamp is stamped once")
}

func TestCarrierCallbackCancelledBeforePickup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "cancel"))
	require.NoError(t, err)
	require.True(t, result.Transitioned)
	require.Equal(t, domorder.StatusCancelled, result.OrderStatus)
}

func TestCarrierCallbackDeliveryFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "delivering"))
	require.NoError(t, err)

	result, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "delivery_fail"))
	require.NoError(t, err)
	require.True(t, result.Transitioned)
	require.Equal(t, domorder.StatusFailed, result.OrderStatus)

	// The payment settled before the carrier ever picked the parcel up; a
	// delivery failure must not rewrite that financial fact.
	o, err := f.orders.Get(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, dompayment.StatusCompleted, o.PaymentStatus)

	replay, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "delivery_fail"))
	require.NoError(t, err)
	require.False(t, replay.Transitioned)
}

func TestCarrierCallbackReturnAfterDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "delivered"))
	require.NoError(t, err)

	result, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "returned"))
	require.NoError(t, err)
	require.True(t, result.Transitioned)
	require.Equal(t, domorder.StatusReturned, result.OrderStatus)
}

func TestCarrierCallbackPrePickupChatter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "ready_to_pick"))
	require.NoError(t, err)
	require.False(t, result.Transitioned)
	require.Equal(t, domorder.StatusConfirmed, result.OrderStatus)
}

func TestCarrierCallbackUnknownStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.uc.Execute(ctx, fakeCarrier{}, webhook("TRK-1", "teleported"))
	require.NoError(t, err)
	require.False(t, result.Transitioned)
	require.Empty(t, result.OrderID, "unknown vocabulary never reaches the order")

	o, err := f.orders.Get(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, domorder.StatusConfirmed, o.Status)
}

func TestCarrierCallbackUnknownTracking(t *testing.T) {
	f := newFixture(t)

	result, err := f.uc.Execute(context.Background(), fakeCarrier{}, webhook("TRK-GHOST", "delivered"))
	require.NoError(t, err)
	require.False(t, result.Transitioned)
	require.Empty(t, result.OrderID)
}

func TestCarrierCallbackMalformedBody(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Execute(context.Background(), fakeCarrier{}, []byte("not json"))
	require.Error(t, err)
}
