package server

import (
	"context"
	"fmt"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/repository"
	"storefront/internal/repository/mongodb"

	"go.uber.org/zap"
)

// Stores holds the repositories of the configured driver
type Stores struct {
	Products repository.ProductRepository
	Carts    repository.CartRepository
	Health   func(ctx context.Context) map[string]string
	Close    func(ctx context.Context) error
}

// OpenStores connects to the configured driver and prepares its schema
func OpenStores(ctx context.Context, cfg *config.Config, migrationsDir string, logger *zap.Logger) (*Stores, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		dbService, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}

		if err := database.RunMigrations(ctx, dbService.DB(), migrationsDir, logger); err != nil {
			dbService.Close()
			return nil, err
		}
		logger.Info("Database migrations completed successfully")

		return &Stores{
			Products: repository.NewProductRepository(dbService.DB()),
			Carts:    repository.NewCartRepository(dbService.DB()),
			Health:   dbService.Health,
			Close: func(context.Context) error {
				return dbService.Close()
			},
		}, nil

	case config.DriverMongo:
		client, err := database.ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}

		db := client.Database(cfg.Mongo.Database)
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			client.Disconnect(ctx)
			return nil, err
		}
		logger.Info("MongoDB indexes ensured", zap.String("database", cfg.Mongo.Database))

		return &Stores{
			Products: mongodb.NewProductStore(db),
			Carts:    mongodb.NewCartStore(db),
			Health: func(ctx context.Context) map[string]string {
				return database.MongoHealth(ctx, client, cfg.Mongo.Database)
			},
			Close: client.Disconnect,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}
