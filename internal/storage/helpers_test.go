package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/reading-entitlements/internal/migrations"
	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// setupTestDB поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	port := nat.Port("5432/tcp")
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{string(port)},
		Env: map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(port),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(3 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)

	connStr := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, mapped.Port())

	var storage *Storage
	for i := 0; i < 10; i++ {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")
	t.Cleanup(func() { _ = storage.Close() })

	root, err := filepath.Abs("../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(root, "migrations")))
	require.NoError(t, CheckDatabaseReady(ctx, storage))

	return storage
}

// testDataFactory создаёт тестовые данные напрямую через SQL.
type testDataFactory struct {
	storage *Storage
}

func (f *testDataFactory) user(t *testing.T, balance int64) string {
	id := "user-" + uuid.NewString()
	_, err := f.storage.DB.Exec(`INSERT INTO users (id, credit_balance) VALUES ($1, $2)`, id, balance)
	require.NoError(t, err)
	return id
}

func (f *testDataFactory) reading(t *testing.T, userID string, sections ...string) string {
	r := &models.Reading{
		ID:            uuid.NewString(),
		UserID:        userID,
		ReadingType:   "natal",
		Interpretable: true,
		ChargeSource:  models.ChargeCredits,
		Sections:      map[string]models.Section{},
	}
	for _, key := range sections {
		r.Sections[key] = models.Section{Preview: key + " preview", Full: key + " full"}
	}
	require.NoError(t, f.storage.InsertReading(context.Background(), r))
	return r.ID
}

func (f *testDataFactory) promo(t *testing.T, code string, maxUses int) {
	_, err := f.storage.DB.Exec(`INSERT INTO promo_codes
		(code, discount_type, discount_value, max_uses, valid_from, valid_until)
		VALUES ($1, 'PERCENTAGE', 10, $2, NOW() - INTERVAL '1 day', NOW() + INTERVAL '1 day')`,
		code, maxUses)
	require.NoError(t, err)
}
