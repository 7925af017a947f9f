package shipping

import "context"

type Repository interface {
	GetMethod(ctx context.Context, id string) (*Method, error)
	InsertShipment(ctx context.Context, shipment *OrderShipment) error
	GetShipmentByOrderID(ctx context.Context, orderID string) (*OrderShipment, error)
	GetShipmentByTracking(ctx context.Context, trackingNumber string) (*OrderShipment, error)
	UpdateShipment(ctx context.Context, shipment *OrderShipment) error
}
