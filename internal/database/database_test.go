package database

import (
	"context"
	"flag"
	"os"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

var mongoURI string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:latest")
	if err != nil {
		log.Fatal().Err(err).Msg("Could not start mongodb container")
	}

	mongoURI, err = container.ConnectionString(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not read mongodb connection string")
	}

	code := m.Run()

	if err := container.Terminate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Could not teardown mongodb container")
	}
	os.Exit(code)
}

func TestNewRejectsEmptyURI(t *testing.T) {
	_, err := New(context.Background(), "", "agroguard_test")
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}

	srv, err := New(context.Background(), mongoURI, "agroguard_test")
	require.NoError(t, err)
	defer srv.Close(context.Background())

	stats := srv.Health()
	assert.Equal(t, "It's healthy", stats["message"])
}

func TestEnsureIndexes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}

	ctx := context.Background()
	srv, err := New(ctx, mongoURI, "agroguard_index_test")
	require.NoError(t, err)
	defer srv.Close(ctx)

	require.NoError(t, srv.EnsureIndexes(ctx))
	// second call must be a no-op
	require.NoError(t, srv.EnsureIndexes(ctx))

	cursor, err := srv.Collection(UsersCollection).Indexes().List(ctx)
	require.NoError(t, err)
	var specs []map[string]interface{}
	require.NoError(t, cursor.All(ctx, &specs))

	var unique bool
	for _, s := range specs {
		if s["name"] == "email_1" {
			unique, _ = s["unique"].(bool)
		}
	}
	assert.True(t, unique, "users.email must be unique")
}
