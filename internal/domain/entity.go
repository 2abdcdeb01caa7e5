package domain

// Kind identifies one of the entity collections the engine owns.
type Kind string

const (
	KindCurrency   Kind = "currency"
	KindItem       Kind = "item"
	KindDropTable  Kind = "dropTable"
	KindStoreEntry Kind = "storeEntry"
	KindBalance    Kind = "balance"
	KindInventory  Kind = "inventory"
)

// CollectionName maps an entity kind to its backing-store collection.
func (k Kind) CollectionName() string {
	switch k {
	case KindCurrency:
		return "currencies"
	case KindItem:
		return "items"
	case KindDropTable:
		return "dropTables"
	case KindStoreEntry:
		return "storeEntries"
	case KindBalance:
		return "balances"
	case KindInventory:
		return "inventories"
	}
	return string(k)
}

// Key addresses a single logical entity for locking and caching.
// Name is the kind-specific remainder of the uniqueness key, e.g.
// a currency name, "user:currency" for a balance, or "item:currency"
// for a store entry.
type Key struct {
	Kind    Kind
	GuildID string
	Name    string
}

// Less defines the canonical total order used when acquiring multiple
// locks. Every multi-entity operation sorts its key set with this
// before acquisition so no two operations acquire in opposite order.
func (k Key) Less(other Key) bool {
	if k.Kind != other.Kind {
		return k.Kind < other.Kind
	}
	if k.GuildID != other.GuildID {
		return k.GuildID < other.GuildID
	}
	return k.Name < other.Name
}

func (k Key) String() string {
	return string(k.Kind) + "/" + k.GuildID + "/" + k.Name
}

// CurrencyConfigKey is the guild-wide lock every currency admin mutation
// takes, serializing changes that can move which currency is the guild's
// base. The empty name can never collide with a real currency (names are
// required non-empty) and the key is lock-only, never cached.
func CurrencyConfigKey(guildID string) Key {
	return Key{Kind: KindCurrency, GuildID: guildID, Name: ""}
}

// BalanceKey builds the lock/cache key for one user's balance in one currency.
func BalanceKey(guildID, userID, currName string) Key {
	return Key{Kind: KindBalance, GuildID: guildID, Name: userID + ":" + currName}
}

// InventoryKey builds the lock/cache key for one user's holding of one item.
func InventoryKey(guildID, userID, itemName string) Key {
	return Key{Kind: KindInventory, GuildID: guildID, Name: userID + ":" + itemName}
}

// StoreEntryKey builds the lock/cache key for a store listing.
func StoreEntryKey(guildID, itemName, currName string) Key {
	return Key{Kind: KindStoreEntry, GuildID: guildID, Name: itemName + ":" + currName}
}
