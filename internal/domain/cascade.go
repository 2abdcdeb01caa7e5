package domain

// Dependent names a collection holding rows that reference an entity of
// another kind through Field. The backing store enforces no foreign keys, so
// cascade deletes consult this table explicitly instead of inferring
// relationships.
type Dependent struct {
	Kind Kind
	// Field is the BSON field in the dependent collection that holds the
	// deleted entity's name.
	Field string
}

// CascadeDependents lists, per deletable kind, every collection that must be
// purged of references when an entity of that kind is deleted.
var CascadeDependents = map[Kind][]Dependent{
	KindCurrency: {
		{Kind: KindBalance, Field: "CurrName"},
		{Kind: KindStoreEntry, Field: "CurrName"},
		{Kind: KindDropTable, Field: "CurrencyName"},
	},
	KindItem: {
		{Kind: KindInventory, Field: "ItemName"},
		{Kind: KindStoreEntry, Field: "ItemName"},
		{Kind: KindDropTable, Field: "ItemName"},
	},
	KindDropTable: {},
	KindStoreEntry: {},
}
