package domain

// ItemKind determines how an item behaves when held or used.
type ItemKind string

const (
	// ItemKindTrophy items only sit in the inventory; they carry no action.
	ItemKindTrophy ItemKind = "Trophy"
	// ItemKindConsumable items are used explicitly and then removed.
	ItemKindConsumable ItemKind = "Consumable"
	// ItemKindInstantConsumable items trigger their action the moment they
	// are obtained.
	ItemKindInstantConsumable ItemKind = "InstantConsumable"
)

// ItemAction is what happens when a consumable item is used.
type ItemAction string

const (
	ItemActionNone        ItemAction = "None"
	ItemActionGiveRole    ItemAction = "Role"
	ItemActionOpenLootbox ItemAction = "Lootbox"
)

// Item is one configurable item within a guild, priced in one of the guild's
// currencies.
type Item struct {
	GuildID     string `bson:"GuildId" validate:"required"`
	ItemName    string `bson:"ItemName" validate:"required,max=100"`
	Symbol      string `bson:"Symbol"`
	Description string `bson:"Description"`
	Sellable    bool   `bson:"Sellable"`
	Tradeable   bool   `bson:"Tradeable"`
	// CurrencyValue names the currency Value is denominated in.
	CurrencyValue string  `bson:"CurrencyValue"`
	Value         float64 `bson:"Value" validate:"gte=0"`

	Kind   ItemKind   `bson:"ItemType"`
	Action ItemAction `bson:"ActionType"`
	// Message is shown by the collaborator when a consumable is used.
	Message string `bson:"Message,omitempty"`
	// RoleID is set when Action is Role.
	RoleID string `bson:"RoleId,omitempty"`
	// DropTableName is set when Action is Lootbox.
	DropTableName string `bson:"DropTableName,omitempty"`

	Revision int64 `bson:"Revision"`
}

// Key returns the lock/cache key for this item.
func (i *Item) Key() Key {
	return Key{Kind: KindItem, GuildID: i.GuildID, Name: i.ItemName}
}

// Consumable reports whether using the item is meaningful.
func (i *Item) Consumable() bool {
	return i.Kind == ItemKindConsumable || i.Kind == ItemKindInstantConsumable
}

// Validate checks kind/action consistency.
func (i *Item) Validate() error {
	if err := validateStruct(i); err != nil {
		return err
	}
	switch i.Kind {
	case ItemKindTrophy:
		if i.Action != "" && i.Action != ItemActionNone {
			return NewValidationError("ActionType", "trophies cannot have an action")
		}
	case ItemKindConsumable, ItemKindInstantConsumable:
		switch i.Action {
		case ItemActionNone:
		case ItemActionGiveRole:
			if i.RoleID == "" {
				return NewValidationError("RoleId", "required for a role action")
			}
		case ItemActionOpenLootbox:
			if i.DropTableName == "" {
				return NewValidationError("DropTableName", "required for a lootbox action")
			}
		default:
			return NewValidationError("ActionType", "unknown action")
		}
	default:
		return NewValidationError("ItemType", "unknown item kind")
	}
	if i.Value < 0 {
		return NewValidationError("Value", "must be non-negative")
	}
	return nil
}
