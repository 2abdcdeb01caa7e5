package domain

import "time"

// StoreEntry is one listing in a guild's store: an item purchasable for a
// currency. Neither UnitPrice nor StockRemaining may go negative; the store
// enforces neither, so the engine does.
type StoreEntry struct {
	GuildID   string  `bson:"GuildId" validate:"required"`
	ItemName  string  `bson:"ItemName" validate:"required"`
	CurrName  string  `bson:"CurrName" validate:"required"`
	UnitPrice float64 `bson:"Value" validate:"gt=0"`
	// GrantAmount is how many of the item one purchase unit grants.
	GrantAmount int64 `bson:"Amount" validate:"gte=1"`
	// StockRemaining is nil for an unlimited listing.
	StockRemaining *int64 `bson:"StockAmount,omitempty"`
	// Expiry is nil for a listing that never expires.
	Expiry *time.Time `bson:"ExpiryDate,omitempty"`
	// RoleRestrictions, when non-empty, limits purchase to actors holding
	// at least one of the listed roles.
	RoleRestrictions []string `bson:"RoleRestrictions,omitempty"`

	Revision int64 `bson:"Revision"`
}

// Key returns the lock/cache key for this listing.
func (s *StoreEntry) Key() Key {
	return StoreEntryKey(s.GuildID, s.ItemName, s.CurrName)
}

// Expired reports whether the listing is past its expiry at the given time.
func (s *StoreEntry) Expired(now time.Time) bool {
	return s.Expiry != nil && now.After(*s.Expiry)
}

// RoleSatisfied reports whether the actor's resolved roles meet the
// restriction set. An empty restriction set admits everyone.
func (s *StoreEntry) RoleSatisfied(roles []string) bool {
	if len(s.RoleRestrictions) == 0 {
		return true
	}
	for _, have := range roles {
		for _, want := range s.RoleRestrictions {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Validate checks price, grant and stock bounds.
func (s *StoreEntry) Validate() error {
	if err := validateStruct(s); err != nil {
		return err
	}
	if s.UnitPrice <= 0 {
		return NewValidationError("Value", "must be positive")
	}
	if s.GrantAmount < 1 {
		return NewValidationError("Amount", "must be at least 1")
	}
	if s.StockRemaining != nil && *s.StockRemaining < 0 {
		return NewValidationError("StockAmount", "must be non-negative")
	}
	return nil
}
