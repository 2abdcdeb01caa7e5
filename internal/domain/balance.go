package domain

// Balance is how much of one currency one user holds in one guild. A row
// exists for every currency the user has ever held; depleting a balance
// leaves the row at zero. Amount never goes negative after a committed
// operation.
type Balance struct {
	GuildID  string  `bson:"GuildId" validate:"required"`
	UserID   string  `bson:"UserId" validate:"required"`
	CurrName string  `bson:"CurrName" validate:"required"`
	Amount   float64 `bson:"Amount" validate:"gte=0"`

	Revision int64 `bson:"Revision"`
}

// Key returns the lock/cache key for this balance row.
func (b *Balance) Key() Key {
	return BalanceKey(b.GuildID, b.UserID, b.CurrName)
}

// InventoryEntry is how many of one item one user holds in one guild. The
// row is removed when the amount reaches zero.
type InventoryEntry struct {
	GuildID  string `bson:"GuildId" validate:"required"`
	UserID   string `bson:"UserId" validate:"required"`
	ItemName string `bson:"ItemName" validate:"required"`
	Amount   int64  `bson:"Amount" validate:"gte=0"`

	Revision int64 `bson:"Revision"`
}

// Key returns the lock/cache key for this inventory row.
func (e *InventoryEntry) Key() Key {
	return InventoryKey(e.GuildID, e.UserID, e.ItemName)
}
