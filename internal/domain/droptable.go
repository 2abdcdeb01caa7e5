package domain

// DropTableEntry is one weighted reward row of a drop table. A table is the
// set of rows sharing (GuildID, TableName). Exactly one of RewardCurrency or
// RewardItem is set. A row with weight zero stays configured but can never be
// drawn; it documents a disabled drop.
type DropTableEntry struct {
	GuildID   string `bson:"GuildId" validate:"required"`
	TableName string `bson:"DropTableName" validate:"required,max=100"`
	// EntryID disambiguates rows within a table; rows keep insertion order
	// by it so resolution walks a stable sequence.
	EntryID        string `bson:"EntryId" validate:"required"`
	RewardCurrency string `bson:"CurrencyName,omitempty"`
	RewardItem     string `bson:"ItemName,omitempty"`
	Weight         int64  `bson:"Weight" validate:"gte=0"`
	// AmountMin/AmountMax bound the quantity granted per draw, inclusive.
	// A fixed amount has AmountMin == AmountMax.
	AmountMin int64 `bson:"AmountMin" validate:"gte=1"`
	AmountMax int64 `bson:"AmountMax" validate:"gte=1"`

	Revision int64 `bson:"Revision"`
}

// Key returns the lock/cache key for the table the entry belongs to.
// Locking is table-granular: edits to any row serialize with resolution
// of the whole table.
func (e *DropTableEntry) Key() Key {
	return Key{Kind: KindDropTable, GuildID: e.GuildID, Name: e.TableName}
}

// Validate checks the exactly-one-of reward rule and amount bounds.
func (e *DropTableEntry) Validate() error {
	if err := validateStruct(e); err != nil {
		return err
	}
	if (e.RewardCurrency == "") == (e.RewardItem == "") {
		return NewValidationError("CurrencyName", "exactly one of currency or item reward must be set")
	}
	if e.Weight < 0 {
		return NewValidationError("Weight", "must be non-negative")
	}
	if e.AmountMin < 1 {
		return NewValidationError("AmountMin", "must be at least 1")
	}
	if e.AmountMax < e.AmountMin {
		return NewValidationError("AmountMax", "must not be below AmountMin")
	}
	return nil
}
