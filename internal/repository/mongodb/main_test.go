package mongodb

import (
	"context"
	"log"
	"os"
	"testing"

	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var testDatabase *mongo.Database

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7")
	if err != nil {
		log.Fatalf("could not start mongo container: %v", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		log.Fatalf("could not get mongo connection string: %v", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("could not connect to mongo: %v", err)
	}

	testDatabase = client.Database("storefront_test")
	if err := EnsureIndexes(ctx, testDatabase); err != nil {
		log.Fatalf("could not create indexes: %v", err)
	}

	code := m.Run()

	_ = client.Disconnect(ctx)
	if err := container.Terminate(ctx); err != nil {
		log.Fatalf("could not teardown mongo container: %v", err)
	}

	os.Exit(code)
}
