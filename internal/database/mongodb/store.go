package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/conebot/conebot-go/internal/domain"
)

func optionsFindSortByEntry() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "EntryId", Value: 1}})
}

// Store implements repository.Store on a Mongo database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	// transactions enables session-backed multi-document commits. Only
	// valid on replica-set deployments; when false, WithTransaction runs
	// the function without a session and per-document revision checks are
	// the only cross-process guard.
	transactions bool
}

// NewStore wraps an established client.
func NewStore(client *mongo.Client, dbName string, transactions bool) *Store {
	return &Store{
		client:       client,
		db:           client.Database(dbName),
		transactions: transactions,
	}
}

// Ping verifies the connection, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// EnsureCollections prepares the database for use.
func (s *Store) EnsureCollections(ctx context.Context) error {
	return EnsureCollections(ctx, s.db)
}

// WithTransaction runs fn in a session transaction when enabled. Transient
// transaction errors surface as domain.ErrConflict so the coordinator's
// retry loop picks them up.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions {
		return fn(ctx)
	}
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: starting session: %v", domain.ErrStoreUnavailable, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	if err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
			return fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
		return err
	}
	return nil
}

func (s *Store) coll(kind domain.Kind) *mongo.Collection {
	return s.db.Collection(kind.CollectionName())
}

func orderedKeys(fields ...string) bson.D {
	keys := make(bson.D, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return keys
}

// getOne decodes a single document into out, mapping ErrNoDocuments to the
// domain's NotFound.
func getOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, what string) (*T, error) {
	var out T
	err := coll.FindOne(ctx, filter).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", domain.ErrStoreUnavailable, what, err)
	}
	return &out, nil
}

func listAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, what string) ([]T, error) {
	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", domain.ErrStoreUnavailable, what, err)
	}
	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", domain.ErrStoreUnavailable, what, err)
	}
	return out, nil
}

func insertOne(ctx context.Context, coll *mongo.Collection, doc any, what string) error {
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", what, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("%w: inserting %s: %v", domain.ErrStoreUnavailable, what, err)
	}
	return nil
}

// replaceCAS swaps the whole document iff its stored Revision still matches
// the expected one; the replacement carries Revision+1. A miss is a conflict
// when the document still exists and NotFound when it is gone.
func replaceCAS(ctx context.Context, coll *mongo.Collection, keyFilter bson.M, expectedRev int64, doc any, what string) error {
	filter := bson.M{"Revision": expectedRev}
	for k, v := range keyFilter {
		filter[k] = v
	}
	res, err := coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return fmt.Errorf("%w: updating %s: %v", domain.ErrStoreUnavailable, what, err)
	}
	if res.MatchedCount == 0 {
		n, err := coll.CountDocuments(ctx, keyFilter)
		if err != nil {
			return fmt.Errorf("%w: checking %s: %v", domain.ErrStoreUnavailable, what, err)
		}
		if n == 0 {
			return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", what, domain.ErrConflict)
	}
	return nil
}

func deleteOne(ctx context.Context, coll *mongo.Collection, filter bson.M, what string) error {
	res, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("%w: deleting %s: %v", domain.ErrStoreUnavailable, what, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

// Currencies

func (s *Store) GetCurrency(ctx context.Context, guildID, name string) (*domain.Currency, error) {
	return getOne[domain.Currency](ctx, s.coll(domain.KindCurrency),
		bson.M{"GuildId": guildID, "CurrName": name}, "currency "+name)
}

func (s *Store) ListCurrencies(ctx context.Context, guildID string) ([]domain.Currency, error) {
	return listAll[domain.Currency](ctx, s.coll(domain.KindCurrency),
		bson.M{"GuildId": guildID}, "currencies")
}

func (s *Store) FindBaseCurrency(ctx context.Context, guildID string) (*domain.Currency, error) {
	return getOne[domain.Currency](ctx, s.coll(domain.KindCurrency),
		bson.M{"GuildId": guildID, "Base": true}, "base currency")
}

func (s *Store) InsertCurrency(ctx context.Context, c *domain.Currency) error {
	c.Revision = 1
	return insertOne(ctx, s.coll(domain.KindCurrency), c, "currency "+c.CurrName)
}

func (s *Store) UpdateCurrency(ctx context.Context, c *domain.Currency) error {
	expected := c.Revision
	c.Revision++
	err := replaceCAS(ctx, s.coll(domain.KindCurrency),
		bson.M{"GuildId": c.GuildID, "CurrName": c.CurrName}, expected, c, "currency "+c.CurrName)
	if err != nil {
		c.Revision = expected
	}
	return err
}

func (s *Store) DeleteCurrency(ctx context.Context, guildID, name string) error {
	return deleteOne(ctx, s.coll(domain.KindCurrency),
		bson.M{"GuildId": guildID, "CurrName": name}, "currency "+name)
}

// Items

func (s *Store) GetItem(ctx context.Context, guildID, name string) (*domain.Item, error) {
	return getOne[domain.Item](ctx, s.coll(domain.KindItem),
		bson.M{"GuildId": guildID, "ItemName": name}, "item "+name)
}

func (s *Store) ListItems(ctx context.Context, guildID string) ([]domain.Item, error) {
	return listAll[domain.Item](ctx, s.coll(domain.KindItem),
		bson.M{"GuildId": guildID}, "items")
}

func (s *Store) InsertItem(ctx context.Context, i *domain.Item) error {
	i.Revision = 1
	return insertOne(ctx, s.coll(domain.KindItem), i, "item "+i.ItemName)
}

func (s *Store) UpdateItem(ctx context.Context, i *domain.Item) error {
	expected := i.Revision
	i.Revision++
	err := replaceCAS(ctx, s.coll(domain.KindItem),
		bson.M{"GuildId": i.GuildID, "ItemName": i.ItemName}, expected, i, "item "+i.ItemName)
	if err != nil {
		i.Revision = expected
	}
	return err
}

func (s *Store) DeleteItem(ctx context.Context, guildID, name string) error {
	return deleteOne(ctx, s.coll(domain.KindItem),
		bson.M{"GuildId": guildID, "ItemName": name}, "item "+name)
}

// Drop tables

func (s *Store) ListDropTableEntries(ctx context.Context, guildID, tableName string) ([]domain.DropTableEntry, error) {
	cursor, err := s.coll(domain.KindDropTable).Find(ctx,
		bson.M{"GuildId": guildID, "DropTableName": tableName},
		// Stable row order; resolution walks entries in insertion order.
		optionsFindSortByEntry())
	if err != nil {
		return nil, fmt.Errorf("%w: listing drop table %s: %v", domain.ErrStoreUnavailable, tableName, err)
	}
	var out []domain.DropTableEntry
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding drop table %s: %v", domain.ErrStoreUnavailable, tableName, err)
	}
	return out, nil
}

func (s *Store) InsertDropTableEntry(ctx context.Context, e *domain.DropTableEntry) error {
	e.Revision = 1
	return insertOne(ctx, s.coll(domain.KindDropTable), e, "drop table entry "+e.EntryID)
}

func (s *Store) DeleteDropTableEntry(ctx context.Context, guildID, tableName, entryID string) error {
	return deleteOne(ctx, s.coll(domain.KindDropTable),
		bson.M{"GuildId": guildID, "DropTableName": tableName, "EntryId": entryID},
		"drop table entry "+entryID)
}

func (s *Store) DeleteDropTable(ctx context.Context, guildID, tableName string) (int64, error) {
	res, err := s.coll(domain.KindDropTable).DeleteMany(ctx,
		bson.M{"GuildId": guildID, "DropTableName": tableName})
	if err != nil {
		return 0, fmt.Errorf("%w: deleting drop table %s: %v", domain.ErrStoreUnavailable, tableName, err)
	}
	return res.DeletedCount, nil
}

// Store entries

func (s *Store) GetStoreEntry(ctx context.Context, guildID, itemName, currName string) (*domain.StoreEntry, error) {
	return getOne[domain.StoreEntry](ctx, s.coll(domain.KindStoreEntry),
		bson.M{"GuildId": guildID, "ItemName": itemName, "CurrName": currName},
		"store entry "+itemName+"/"+currName)
}

func (s *Store) ListStoreEntries(ctx context.Context, guildID string) ([]domain.StoreEntry, error) {
	return listAll[domain.StoreEntry](ctx, s.coll(domain.KindStoreEntry),
		bson.M{"GuildId": guildID}, "store entries")
}

func (s *Store) InsertStoreEntry(ctx context.Context, entry *domain.StoreEntry) error {
	entry.Revision = 1
	return insertOne(ctx, s.coll(domain.KindStoreEntry), entry,
		"store entry "+entry.ItemName+"/"+entry.CurrName)
}

func (s *Store) UpdateStoreEntry(ctx context.Context, entry *domain.StoreEntry) error {
	expected := entry.Revision
	entry.Revision++
	err := replaceCAS(ctx, s.coll(domain.KindStoreEntry),
		bson.M{"GuildId": entry.GuildID, "ItemName": entry.ItemName, "CurrName": entry.CurrName},
		expected, entry, "store entry "+entry.ItemName+"/"+entry.CurrName)
	if err != nil {
		entry.Revision = expected
	}
	return err
}

func (s *Store) DeleteStoreEntry(ctx context.Context, guildID, itemName, currName string) error {
	return deleteOne(ctx, s.coll(domain.KindStoreEntry),
		bson.M{"GuildId": guildID, "ItemName": itemName, "CurrName": currName},
		"store entry "+itemName+"/"+currName)
}

// Balances

func (s *Store) GetBalance(ctx context.Context, guildID, userID, currName string) (*domain.Balance, error) {
	return getOne[domain.Balance](ctx, s.coll(domain.KindBalance),
		bson.M{"GuildId": guildID, "UserId": userID, "CurrName": currName},
		"balance "+userID+"/"+currName)
}

func (s *Store) ListBalances(ctx context.Context, guildID, userID string) ([]domain.Balance, error) {
	return listAll[domain.Balance](ctx, s.coll(domain.KindBalance),
		bson.M{"GuildId": guildID, "UserId": userID}, "balances")
}

func (s *Store) InsertBalance(ctx context.Context, b *domain.Balance) error {
	b.Revision = 1
	return insertOne(ctx, s.coll(domain.KindBalance), b, "balance "+b.UserID+"/"+b.CurrName)
}

func (s *Store) UpdateBalance(ctx context.Context, b *domain.Balance) error {
	expected := b.Revision
	b.Revision++
	err := replaceCAS(ctx, s.coll(domain.KindBalance),
		bson.M{"GuildId": b.GuildID, "UserId": b.UserID, "CurrName": b.CurrName},
		expected, b, "balance "+b.UserID+"/"+b.CurrName)
	if err != nil {
		b.Revision = expected
	}
	return err
}

// Inventories

func (s *Store) GetInventoryEntry(ctx context.Context, guildID, userID, itemName string) (*domain.InventoryEntry, error) {
	return getOne[domain.InventoryEntry](ctx, s.coll(domain.KindInventory),
		bson.M{"GuildId": guildID, "UserId": userID, "ItemName": itemName},
		"inventory "+userID+"/"+itemName)
}

func (s *Store) ListInventory(ctx context.Context, guildID, userID string) ([]domain.InventoryEntry, error) {
	return listAll[domain.InventoryEntry](ctx, s.coll(domain.KindInventory),
		bson.M{"GuildId": guildID, "UserId": userID}, "inventory")
}

func (s *Store) InsertInventoryEntry(ctx context.Context, e *domain.InventoryEntry) error {
	e.Revision = 1
	return insertOne(ctx, s.coll(domain.KindInventory), e, "inventory "+e.UserID+"/"+e.ItemName)
}

func (s *Store) UpdateInventoryEntry(ctx context.Context, e *domain.InventoryEntry) error {
	expected := e.Revision
	e.Revision++
	err := replaceCAS(ctx, s.coll(domain.KindInventory),
		bson.M{"GuildId": e.GuildID, "UserId": e.UserID, "ItemName": e.ItemName},
		expected, e, "inventory "+e.UserID+"/"+e.ItemName)
	if err != nil {
		e.Revision = expected
	}
	return err
}

func (s *Store) DeleteInventoryEntry(ctx context.Context, guildID, userID, itemName string) error {
	return deleteOne(ctx, s.coll(domain.KindInventory),
		bson.M{"GuildId": guildID, "UserId": userID, "ItemName": itemName},
		"inventory "+userID+"/"+itemName)
}

// DeleteDependents removes every row of kind whose field references name.
func (s *Store) DeleteDependents(ctx context.Context, kind domain.Kind, field, guildID, name string) (int64, error) {
	res, err := s.coll(kind).DeleteMany(ctx, bson.M{"GuildId": guildID, field: name})
	if err != nil {
		return 0, fmt.Errorf("%w: cascading into %s: %v", domain.ErrStoreUnavailable, kind.CollectionName(), err)
	}
	return res.DeletedCount, nil
}
