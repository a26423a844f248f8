package pinentry_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/effective-security/p11tool/pinentry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Static(t *testing.T) {
	src := pinentry.Static("1234")

	pin, err := src.Pin()
	require.NoError(t, err)
	assert.Equal(t, []byte("1234"), pin)

	// wiping the returned buffer must not affect the source
	pinentry.Wipe(pin)
	assert.Equal(t, []byte{0, 0, 0, 0}, pin)

	again, err := src.Pin()
	require.NoError(t, err)
	assert.Equal(t, []byte("1234"), again)
}

func Test_File(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "pin.txt")
	require.NoError(t, os.WriteFile(name, []byte("  4321\n"), 0600))

	pin, err := pinentry.File(name).Pin()
	require.NoError(t, err)
	assert.Equal(t, []byte("4321"), pin)

	_, err = pinentry.File(filepath.Join(dir, "missing")).Pin()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to load PIN")
}

func Test_Prompt(t *testing.T) {
	var out bytes.Buffer
	p := &pinentry.Prompt{
		In:  bytes.NewBufferString("9999\n"),
		Out: &out,
	}
	pin, err := p.Pin()
	require.NoError(t, err)
	assert.Equal(t, []byte("9999"), pin)
	assert.Equal(t, "Enter PIN: ", out.String())
}

func Test_Prompt_Label(t *testing.T) {
	var out bytes.Buffer
	p := &pinentry.Prompt{
		Label: "SO PIN",
		In:    bytes.NewBufferString("0000\r\n"),
		Out:   &out,
	}
	pin, err := p.Pin()
	require.NoError(t, err)
	assert.Equal(t, []byte("0000"), pin)
	assert.Equal(t, "Enter SO PIN: ", out.String())
}

func Test_Prompt_Empty(t *testing.T) {
	p := &pinentry.Prompt{
		In:  bytes.NewBuffer(nil),
		Out: &bytes.Buffer{},
	}
	_, err := p.Pin()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to read PIN")
}

func Test_Wipe(t *testing.T) {
	pin := []byte("secret")
	pinentry.Wipe(pin)
	assert.Equal(t, make([]byte, 6), pin)
	pinentry.Wipe(nil)
}
