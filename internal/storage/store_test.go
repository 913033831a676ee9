package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"metalwatch/internal/config"
)

func TestNewPoolRequiresDSN(t *testing.T) {
	_, err := NewPool(context.Background(), config.DatabaseConfig{})
	assert.ErrorContains(t, err, "database.dsn")
}

func TestNewPoolRejectsMalformedDSN(t *testing.T) {
	_, err := NewPool(context.Background(), config.DatabaseConfig{DSN: "postgres://%zz"})
	assert.ErrorContains(t, err, "parse database dsn")
}

func TestMigrateEmptyDirectory(t *testing.T) {
	_, err := Migrate(context.Background(), nil, t.TempDir())
	assert.ErrorContains(t, err, "no migrations found")
}
