package floors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.99, cfg.Get(Truth, 0))
	assert.Equal(t, 0.95, cfg.PsiMin())
	assert.Equal(t, 0.95, cfg.TriWitness())
	assert.Equal(t, "1.0.0", cfg.SchemaVersion())
	assert.Contains(t, cfg.Keys(), KappaR)
}

func TestLoad_MissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0.85, cfg.Get(Rasa, 0))
}

func TestParse_FlatDocument(t *testing.T) {
	cfg, err := Parse([]byte("truth: 0.97\npeace2: 1\n"))
	require.NoError(t, err)

	assert.Equal(t, 0.97, cfg.Get(Truth, 0))
	assert.Equal(t, 1.0, cfg.Get(Peace2, 0))
	// absent key resolves to the documented default
	assert.Equal(t, 0.95, cfg.PsiMin())
	_, ok := cfg.Lookup(PsiMin)
	assert.False(t, ok)
}

func TestParse_UnknownKeyWithoutDefault(t *testing.T) {
	cfg := New(nil)
	assert.Equal(t, 0.42, cfg.Get("unheard_of", 0.42))
}

func TestParse_RejectsUnsupportedSchema(t *testing.T) {
	_, err := Parse([]byte("schema_version: 2.1.0\nfloors:\n  truth: 0.99\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestParse_RejectsNonNumeric(t *testing.T) {
	_, err := Parse([]byte("floors:\n  truth: high\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"truth"`)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schema_version: 1.2.0\nfloors:\n  psi_min: 1.1\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.1, cfg.PsiMin())
}

func TestConfig_MapIsCopy(t *testing.T) {
	cfg := New(map[string]float64{Truth: 0.99})
	m := cfg.Map()
	m[Truth] = 0

	assert.Equal(t, 0.99, cfg.Get(Truth, 0))
}
