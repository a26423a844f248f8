package p11

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoadTokenConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "token.yaml")
	err := os.WriteFile(cfgFile, []byte(`
path: /usr/lib/softhsm/libsofthsm2.so
slot: 5
token_label: dev
pin: "1234"
allow_no_token: true
`), 0644)
	require.NoError(t, err)

	cfg, err := LoadTokenConfig(cfgFile)
	require.NoError(t, err)
	assert.Equal(t, "/usr/lib/softhsm/libsofthsm2.so", cfg.Path())
	require.NotNil(t, cfg.Slot())
	assert.Equal(t, uint(5), *cfg.Slot())
	assert.Equal(t, "dev", cfg.TokenLabel())
	assert.Equal(t, "1234", cfg.Pin())
	assert.False(t, cfg.RequireToken())
}

func Test_LoadTokenConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "token.json")
	err := os.WriteFile(cfgFile, []byte(`{
	"Path": "/opt/lib/libpkcs11.so",
	"TokenLabel": "prod",
	"Pin": "0000"
}`), 0644)
	require.NoError(t, err)

	cfg, err := LoadTokenConfig(cfgFile)
	require.NoError(t, err)
	assert.Equal(t, "/opt/lib/libpkcs11.so", cfg.Path())
	assert.Nil(t, cfg.Slot())
	assert.Equal(t, "prod", cfg.TokenLabel())
	assert.Equal(t, "0000", cfg.Pin())
	assert.True(t, cfg.RequireToken())
}

func Test_LoadTokenConfig_PinFile(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "pin.txt"), []byte("s3cr3t\n"), 0600)
	require.NoError(t, err)

	cfgFile := filepath.Join(dir, "token.yaml")
	err = os.WriteFile(cfgFile, []byte(`
path: /usr/lib/softhsm/libsofthsm2.so
pin: file:pin.txt
`), 0644)
	require.NoError(t, err)

	// the pin file resolves relative to the config location
	cfg, err := LoadTokenConfig(cfgFile)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Pin())
}

func Test_LoadTokenConfig_PinFileMissing(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "token.yaml")
	err := os.WriteFile(cfgFile, []byte(`
path: /usr/lib/softhsm/libsofthsm2.so
pin: file:no-such-pin.txt
`), 0644)
	require.NoError(t, err)

	_, err = LoadTokenConfig(cfgFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to load PIN")
}

func Test_LoadTokenConfig_Errors(t *testing.T) {
	_, err := LoadTokenConfig("no-such-file.yaml")
	require.Error(t, err)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	_, err = LoadTokenConfig(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode file")
}
