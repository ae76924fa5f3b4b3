package repository

import (
	"fmt"

	"github.com/example/khanpan/pkg/config"
	"github.com/example/khanpan/pkg/ledger"
)

// OpenOrderStore returns the order store named by ledger.store and a func
// that releases it. Every process that runs the ledger in process goes
// through here so they all read and write the same orders.
func OpenOrderStore(cfg *config.Config, mongoRepo *MongoRepository) (ledger.Store, func(), error) {
	switch cfg.Ledger.Store {
	case "mysql":
		store, err := NewSQLOrderStore(&cfg.MySQL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open MySQL order store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case "memory":
		return ledger.NewMemoryStore(), func() {}, nil
	case "mongo", "":
		if mongoRepo == nil {
			return nil, nil, fmt.Errorf("ledger store %q needs a MongoDB connection", "mongo")
		}
		return mongoRepo.Orders(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger store %q", cfg.Ledger.Store)
	}
}
