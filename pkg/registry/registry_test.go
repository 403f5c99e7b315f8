package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	reg := Default()
	require.NoError(t, reg.Validate())
	assert.Len(t, reg.Panel(TierTier2), Tier2PanelSize)
	assert.Len(t, reg.Panel(TierTier3), Tier3PanelSize)
	assert.Equal(t, "authority-validator", reg.Panel(TierTier2)[0].ID)
}

func TestLoadRegistry_RoundTripsDefault(t *testing.T) {
	data, err := json.Marshal(Default())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "panels.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Personas, reg.Personas)
}

func TestLoadRegistry_RejectsWrongPanelSize(t *testing.T) {
	reg := Default()
	off := false
	reg.Personas[0].Enabled = &off

	err := reg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tier2 panel has 4 personas")
}

func TestValidate_DuplicateID(t *testing.T) {
	reg := Default()
	reg.Personas[1].ID = reg.Personas[0].ID
	assert.ErrorContains(t, reg.Validate(), "duplicate persona id")
}

func TestLoadOrDefault(t *testing.T) {
	reg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), reg)

	_, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
