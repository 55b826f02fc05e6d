package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 2, cfg.Sync.ThresholdRequired)
	assert.Equal(t, 30*time.Second, cfg.Sync.SignatureTimeout)
	assert.Equal(t, 3, cfg.Sync.MaxRetryAttempts)
	assert.Equal(t, 20, cfg.Sync.MerkleTreeDepth)
	assert.Equal(t, 300*time.Second, cfg.Auth.LockoutDuration)
	assert.Equal(t, 3, cfg.Auth.LockoutMaxAttempts)
	assert.InDelta(t, 0.85, cfg.Auth.BiometricThreshold, 1e-9)
	assert.Equal(t, "fortis-genesis", cfg.Audit.Genesis)
	assert.Equal(t, 1024, cfg.Sync.QueueCapacity)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Empty(t, cfg.AdminToken)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("VERIFICATION_NODES", "http://n1|0xaa, http://n2|0xbb,http://n3|0xcc")
	t.Setenv("THRESHOLD_REQUIRED", "3")
	t.Setenv("LOCKOUT_DURATION", "60")
	t.Setenv("SIGNATURE_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ADMIN_TOKEN", "ops")
	t.Setenv("SYNC_CLEANUP_RETENTION", "2h")

	cfg, err := FromEnv()
	require.NoError(t, err)

	require.Len(t, cfg.Sync.Nodes, 3)
	assert.Equal(t, VerificationNode{URL: "http://n2", Address: "0xbb"}, cfg.Sync.Nodes[1])
	assert.Equal(t, 3, cfg.Sync.ThresholdRequired)
	assert.Equal(t, time.Minute, cfg.Auth.LockoutDuration)
	assert.Equal(t, 5*time.Second, cfg.Sync.SignatureTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "ops", cfg.AdminToken)
	assert.Equal(t, 2*time.Hour, cfg.Sync.CleanupRetention)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	t.Run("threshold above node count", func(t *testing.T) {
		t.Setenv("VERIFICATION_NODES", "http://n1|0xaa")
		t.Setenv("THRESHOLD_REQUIRED", "2")
		_, err := FromEnv()
		assert.Error(t, err)
	})

	t.Run("biometric threshold out of range", func(t *testing.T) {
		t.Setenv("BIOMETRIC_THRESHOLD", "1.5")
		_, err := FromEnv()
		assert.Error(t, err)
	})

	t.Run("malformed node", func(t *testing.T) {
		t.Setenv("VERIFICATION_NODES", "http://n1")
		_, err := FromEnv()
		assert.Error(t, err)
	})
}
