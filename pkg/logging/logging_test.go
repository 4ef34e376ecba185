package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sferrors "github.com/vnykmshr/stageflow/pkg/common/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"development", DevelopmentConfig(), false},
		{"empty level falls back to info", Config{}, false},
		{"warn", Config{Level: "warn"}, false},
		{"unknown level", Config{Level: "verbose"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, sferrors.ErrInvalidConfiguration)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNewLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diag.json")

	logger, err := New(Config{Level: "warn", OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("stage closed", zap.String("stage", "Tester"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry), "exactly one JSON line expected, got %q", data)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "stage closed", entry["message"])
	assert.Equal(t, "Tester", entry["stage"])
}

func TestNewDefault(t *testing.T) {
	assert.NotNil(t, NewDefault())
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
