package domain

// Currency is one configurable currency within a guild. Exactly one currency
// per guild has Base set; every other currency's BaseValue expresses its
// exchange rate relative to that base currency. BSON field names are
// PascalCase so the collection stays readable by earlier deployments of the
// same database.
type Currency struct {
	GuildID  string `bson:"GuildId" validate:"required"`
	CurrName string `bson:"CurrName" validate:"required,max=100"`
	// Symbol is mostly cosmetic but must be present, preferably one character.
	Symbol  string `bson:"Symbol" validate:"required"`
	Visible bool   `bson:"Visible"`
	// Base marks this currency as the basis for exchange rates.
	Base bool `bson:"Base"`
	// BaseValue is how much one unit is worth in the base currency.
	// Nil if and only if this currency is the base currency.
	BaseValue *float64 `bson:"BaseValue,omitempty"`
	// Pay controls whether members can send this currency to each other.
	Pay bool `bson:"Pay"`

	// Earn-by-chat settings.
	EarnByChat         bool     `bson:"EarnByChat"`
	EarnMin            float64  `bson:"EarnMin"`
	EarnMax            float64  `bson:"EarnMax"`
	EarnTimeoutSeconds int64    `bson:"EarnTimeout"`
	ChannelsIsWhitelist bool    `bson:"ChannelsIsWhitelist"`
	RolesIsWhitelist    bool    `bson:"RolesIsWhitelist"`
	ChannelsWhitelist   []string `bson:"ChannelsWhitelist,omitempty"`
	ChannelsBlacklist   []string `bson:"ChannelsBlacklist,omitempty"`
	RolesWhitelist      []string `bson:"RolesWhitelist,omitempty"`
	RolesBlacklist      []string `bson:"RolesBlacklist,omitempty"`

	// Revision guards compare-and-swap commits; bumped on every write.
	Revision int64 `bson:"Revision"`
}

// Key returns the lock/cache key for this currency.
func (c *Currency) Key() Key {
	return Key{Kind: KindCurrency, GuildID: c.GuildID, Name: c.CurrName}
}

// Rate returns the currency's value in base-currency units.
func (c *Currency) Rate() float64 {
	if c.Base || c.BaseValue == nil {
		return 1
	}
	return *c.BaseValue
}

// Exchangeable reports whether this currency participates in exchange.
// The base currency always does; others need a configured BaseValue.
func (c *Currency) Exchangeable() bool {
	return c.Base || (c.BaseValue != nil && *c.BaseValue > 0)
}

// Validate checks the tag rules plus the cross-field rules a validator tag
// cannot express.
func (c *Currency) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}
	if c.Base && c.BaseValue != nil {
		return NewValidationError("BaseValue", "must be absent on the base currency")
	}
	if c.BaseValue != nil && *c.BaseValue <= 0 {
		return NewValidationError("BaseValue", "must be positive")
	}
	if c.EarnMin < 0 || c.EarnMax < 0 {
		return NewValidationError("EarnMin", "earn amounts must be non-negative")
	}
	if c.EarnMin > c.EarnMax {
		return NewValidationError("EarnMin", "must not exceed EarnMax")
	}
	if c.EarnTimeoutSeconds < 0 {
		return NewValidationError("EarnTimeout", "must be non-negative")
	}
	return nil
}
