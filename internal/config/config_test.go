package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv clears keys for the test; envconfig treats an empty variable as set.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			require.NoError(t, os.Unsetenv(k))
			t.Cleanup(func() { _ = os.Setenv(k, v) })
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t, "HTTP_ADDR", "STORE_BACKEND", "KAFKA_BROKERS", "ADMIN_IDS", "PAYMENT_TIMEOUT",
		"REMOVE_POLICY", "PAYMENT_INSTRUCTIONS", "NOTIFIER_WORKERS")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendFile, c.StoreBackend)
	assert.Equal(t, 60*time.Second, c.PaymentTimeout)
	assert.False(t, c.KafkaEnabled())
	assert.Equal(t, 0, c.Admins().Len())
	assert.Equal(t, "payment instructions not set, contact admin", c.PaymentInstructions)
	assert.Equal(t, ":8081", c.HTTPAddr)
	assert.Equal(t, 4, c.NotifierWorkers)
}

func TestLoadParsesLists(t *testing.T) {
	t.Setenv("STORE_BACKEND", " Redis ")
	t.Setenv("REMOVE_POLICY", "seller")
	t.Setenv("PAYMENT_TIMEOUT", "90s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("ADMIN_IDS", "12, 34,abc,,56")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, c.StoreBackend)
	assert.Equal(t, 90*time.Second, c.PaymentTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers())
	assert.True(t, c.KafkaEnabled())
	assert.Equal(t, []int64{12, 34, 56}, c.Admins().IDs())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("REMOVE_POLICY", "admin")
	t.Setenv("PAYMENT_TIMEOUT", "60s")

	t.Setenv("STORE_BACKEND", "sqlite")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("REMOVE_POLICY", "anyone")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("REMOVE_POLICY", "admin")
	t.Setenv("PAYMENT_TIMEOUT", "soon")
	_, err = Load()
	assert.Error(t, err)
}
