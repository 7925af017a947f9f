package id

import "github.com/google/uuid"

// UUIDGenerator issues random v4 identifiers for orders, payments and coupon
// grants.
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) NewID() string { return uuid.NewString() }
