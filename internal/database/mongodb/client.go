// Package mongodb implements the repository.Store contract on MongoDB.
// Each entity kind maps to one collection; documents carry a Revision field
// that every update compares and bumps, so concurrent writers are detected
// even when the deployment cannot run multi-document transactions.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/conebot/conebot-go/internal/domain"
)

const connectTimeout = 10 * time.Second

// Connect dials the deployment and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return client, nil
}

var collections = []domain.Kind{
	domain.KindCurrency,
	domain.KindItem,
	domain.KindDropTable,
	domain.KindStoreEntry,
	domain.KindBalance,
	domain.KindInventory,
}

// EnsureCollections creates any missing collections so first writes do not
// race collection creation inside transactions, and installs the uniqueness
// indexes the schema-less store would otherwise not enforce.
func EnsureCollections(ctx context.Context, db *mongo.Database) error {
	existing, err := db.ListCollectionNames(ctx, map[string]any{})
	if err != nil {
		return fmt.Errorf("%w: listing collections: %v", domain.ErrStoreUnavailable, err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	for _, kind := range collections {
		name := kind.CollectionName()
		if have[name] {
			continue
		}
		if err := db.CreateCollection(ctx, name); err != nil {
			return fmt.Errorf("%w: creating collection %s: %v", domain.ErrStoreUnavailable, name, err)
		}
	}

	return ensureIndexes(ctx, db)
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	models := map[string]mongo.IndexModel{
		"currencies":   {Keys: orderedKeys("GuildId", "CurrName"), Options: unique},
		"items":        {Keys: orderedKeys("GuildId", "ItemName"), Options: unique},
		"dropTables":   {Keys: orderedKeys("GuildId", "DropTableName", "EntryId"), Options: unique},
		"storeEntries": {Keys: orderedKeys("GuildId", "ItemName", "CurrName"), Options: unique},
		"balances":     {Keys: orderedKeys("GuildId", "UserId", "CurrName"), Options: unique},
		"inventories":  {Keys: orderedKeys("GuildId", "UserId", "ItemName"), Options: unique},
	}
	for coll, model := range models {
		if _, err := db.Collection(coll).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("%w: indexing %s: %v", domain.ErrStoreUnavailable, coll, err)
		}
	}
	return nil
}
