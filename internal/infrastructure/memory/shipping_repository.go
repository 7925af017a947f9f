package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/namprobe/NekoViBE-sub001/internal/domain/shipping"
)

type ShippingRepository struct {
	mu        sync.RWMutex
	methods   map[string]*domain.Method
	shipments map[string]*domain.OrderShipment // keyed by order id
	tracking  map[string]string                // tracking number -> order id
}

func NewShippingRepository() *ShippingRepository {
	return &ShippingRepository{
		methods:   make(map[string]*domain.Method),
		shipments: make(map[string]*domain.OrderShipment),
		tracking:  make(map[string]string),
	}
}

// SeedMethods loads shipping method fixtures outside any transaction.
func (r *ShippingRepository) SeedMethods(methods ...*domain.Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range methods {
		cp := *m
		r.methods[m.ID] = &cp
	}
}

func (r *ShippingRepository) GetMethod(ctx context.Context, id string) (*domain.Method, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.methods[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	cp := *m
	return &cp, nil
}

func (r *ShippingRepository) InsertShipment(ctx context.Context, shipment *domain.OrderShipment) error {
	_ = ctx
	if shipment == nil || shipment.OrderID == "" {
		return fmt.Errorf("shipping repository: order id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.shipments[shipment.OrderID]; exists {
		return fmt.Errorf("shipping repository: shipment for order %s already exists", shipment.OrderID)
	}

	r.shipments[shipment.OrderID] = shipment.Clone()
	if shipment.TrackingNumber != "" {
		r.tracking[shipment.TrackingNumber] = shipment.OrderID
	}
	return nil
}

func (r *ShippingRepository) GetShipmentByOrderID(ctx context.Context, orderID string) (*domain.OrderShipment, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.shipments[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return s.Clone(), nil
}

func (r *ShippingRepository) GetShipmentByTracking(ctx context.Context, trackingNumber string) (*domain.OrderShipment, error) {
	_ = ctx
	if trackingNumber == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.tracking[trackingNumber]
	if !ok {
		return nil, domain.ErrNotFound
	}
	s, found := r.shipments[orderID]
	if !found {
		return nil, domain.ErrNotFound
	}

	return s.Clone(), nil
}

func (r *ShippingRepository) UpdateShipment(ctx context.Context, shipment *domain.OrderShipment) error {
	_ = ctx
	if shipment == nil || shipment.OrderID == "" {
		return fmt.Errorf("shipping repository: order id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.shipments[shipment.OrderID]; !exists {
		return domain.ErrNotFound
	}

	r.shipments[shipment.OrderID] = shipment.Clone()
	if shipment.TrackingNumber != "" {
		r.tracking[shipment.TrackingNumber] = shipment.OrderID
	}
	return nil
}

type shippingSnapshot struct {
	methods   map[string]*domain.Method
	shipments map[string]*domain.OrderShipment
	tracking  map[string]string
}

func (r *ShippingRepository) snapshot() shippingSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := shippingSnapshot{
		methods:   make(map[string]*domain.Method, len(r.methods)),
		shipments: make(map[string]*domain.OrderShipment, len(r.shipments)),
		tracking:  make(map[string]string, len(r.tracking)),
	}
	for id, m := range r.methods {
		cp := *m
		snap.methods[id] = &cp
	}
	for id, s := range r.shipments {
		snap.shipments[id] = s.Clone()
	}
	for tn, id := range r.tracking {
		snap.tracking[tn] = id
	}
	return snap
}

func (r *ShippingRepository) restore(snap shippingSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods = snap.methods
	r.shipments = snap.shipments
	r.tracking = snap.tracking
}
