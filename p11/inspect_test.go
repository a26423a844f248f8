package p11

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/p11tool/pinentry"
	"github.com/miekg/pkcs11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failSource fails the test if the workflow consults it.
type failSource struct {
	t *testing.T
}

func (f failSource) Pin() ([]byte, error) {
	f.t.Fatal("PIN source must not be consulted")
	return nil, errors.New("unreachable")
}

func Test_Inspector_Run(t *testing.T) {
	m, err := NewSampleModule()
	require.NoError(t, err)

	var out bytes.Buffer
	ins := &Inspector{
		Module:       m,
		Out:          &out,
		Pin:          pinentry.Static("1234"),
		RequireToken: true,
	}
	err = ins.Run()
	require.NoError(t, err)

	for _, exp := range []string{
		"PKCS#11 Version: 2.40",
		"Lib manufacturer: p11tool",
		"Found 1 slots",
		"Slot 1 description: In-memory slot",
		"Slot flags: CKF_TOKEN_PRESENT",
		"Token label: inmem",
		"Token flags: CKF_LOGIN_REQUIRED|CKF_USER_PIN_INITIALIZED|CKF_TOKEN_INITIALIZED",
		"Token supports 2 mechanisms",
		"CKM_RSA_PKCS",
		"Min key size = 1024, max key size = 4096",
		"Flags: CKF_SIGN|CKF_VERIFY",
		"Session flags: CKF_SERIAL_SESSION",
		"Object class: CKO_PRIVATE_KEY",
		"Object class: CKO_PUBLIC_KEY",
		"Objects of class CKO_CERTIFICATE:",
		"Objects of class CKO_VENDOR_DEFINED:",
		"Key Identifier: 69642d31",
		"Key type: CKK_RSA",
		"Allowed Mechanisms: CKM_RSA_PKCS, CKM_SHA256_RSA_PKCS",
		"Certificate Type: X.509 Certificate",
		"Object value: 512 bytes",
		"Application Description: sample-app",
	} {
		assert.Contains(t, out.String(), exp)
	}

	// the session is closed on the way out
	assert.Zero(t, m.SessionCount())
}

func Test_Inspector_ProtectedAuthPath(t *testing.T) {
	m := NewMemModule()
	tok := m.AddToken(7, "hw", "1234", pkcs11.CKF_PROTECTED_AUTHENTICATION_PATH)
	tok.Mechanisms = nil

	var out bytes.Buffer
	ins := &Inspector{
		Module:       m,
		Out:          &out,
		Pin:          failSource{t},
		RequireToken: true,
	}
	err := ins.Run()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Protected authentication path found, not prompting PIN")
	assert.Zero(t, m.SessionCount())
}

func Test_Inspector_LoginFailure(t *testing.T) {
	m, err := NewSampleModule()
	require.NoError(t, err)

	var out bytes.Buffer
	ins := &Inspector{
		Module:       m,
		Out:          &out,
		Pin:          pinentry.Static("wrong"),
		RequireToken: true,
	}
	err = ins.Run()
	require.Error(t, err)
	assert.True(t, IsPinIncorrect(err))

	// the login failure still closes the session
	assert.Zero(t, m.SessionCount())
}

func Test_Inspector_NoLogin(t *testing.T) {
	m, err := NewSampleModule()
	require.NoError(t, err)

	var out bytes.Buffer
	ins := &Inspector{
		Module:       m,
		Out:          &out,
		Pin:          failSource{t},
		NoLogin:      true,
		RequireToken: true,
	}
	err = ins.Run()
	require.NoError(t, err)
	assert.Zero(t, m.SessionCount())
}

func Test_Inspector_SelectSlot(t *testing.T) {
	m, err := NewSampleModule()
	require.NoError(t, err)
	m.AddToken(9, "second", "", 0)

	var out bytes.Buffer
	ins := &Inspector{Module: m, Out: &out, RequireToken: true}

	slotID, err := ins.SelectSlot()
	require.NoError(t, err)
	assert.Equal(t, uint(1), slotID)
	assert.Contains(t, out.String(), "Found 2 slots")

	slot := uint(9)
	ins.Slot = &slot
	slotID, err = ins.SelectSlot()
	require.NoError(t, err)
	assert.Equal(t, uint(9), slotID)
}

func Test_Inspector_SelectSlot_ByLabel(t *testing.T) {
	m, err := NewSampleModule()
	require.NoError(t, err)
	m.AddToken(9, "second", "", 0)

	var out bytes.Buffer
	ins := &Inspector{Module: m, Out: &out, RequireToken: true, TokenLabel: "second"}

	slotID, err := ins.SelectSlot()
	require.NoError(t, err)
	assert.Equal(t, uint(9), slotID)

	// an explicit slot wins over the label
	slot := uint(1)
	ins.Slot = &slot
	slotID, err = ins.SelectSlot()
	require.NoError(t, err)
	assert.Equal(t, uint(1), slotID)

	ins.Slot = nil
	ins.TokenLabel = "absent"
	_, err = ins.SelectSlot()
	require.Error(t, err)
	assert.Equal(t, `no token with label "absent" found`, err.Error())
}

func Test_Inspector_SelectSlot_Unsupported(t *testing.T) {
	m, err := NewSampleModule()
	require.NoError(t, err)
	m.SetUnsupported("GetSlotInfo")

	var out bytes.Buffer
	ins := &Inspector{Module: m, Out: &out, RequireToken: true}

	slotID, err := ins.SelectSlot()
	require.NoError(t, err)
	assert.Equal(t, uint(1), slotID)
	assert.Contains(t, out.String(), "GetSlotInfo is not supported, assuming first slot is valid")
}

func Test_Inspector_NoSlots(t *testing.T) {
	m := NewMemModule()

	var out bytes.Buffer
	ins := &Inspector{Module: m, Out: &out, RequireToken: true}

	_, err := ins.SelectSlot()
	require.Error(t, err)
	assert.Equal(t, "no slots found", err.Error())
}

func Test_Inspector_RequireToken(t *testing.T) {
	m := NewMemModule()
	tok := m.AddToken(3, "absent", "", 0)
	tok.Present = false

	var out bytes.Buffer
	ins := &Inspector{Module: m, Out: &out, RequireToken: true}
	_, err := ins.SelectSlot()
	require.Error(t, err)

	ins.RequireToken = false
	slotID, err := ins.SelectSlot()
	require.NoError(t, err)
	assert.Equal(t, uint(3), slotID)
}

func Test_Inspector_DumpTokenInfo(t *testing.T) {
	m, err := NewSampleModule()
	require.NoError(t, err)

	var out bytes.Buffer
	ins := &Inspector{Module: m, Out: &out}

	ti := ins.DumpTokenInfo(1)
	assert.Equal(t, "inmem", TrimPadding([]byte(ti.Label)))
	for _, exp := range []string{
		"Token Serial: 0000000000000001",
		"Token MaxSessionCount = 0",
		"Token Max PIN len = 0",
		"Token utcTime = ",
	} {
		assert.Contains(t, out.String(), exp)
	}

	// a failure reports and returns the zero value
	out.Reset()
	ti = ins.DumpTokenInfo(42)
	assert.Zero(t, ti.Flags)
	assert.Contains(t, out.String(), "unable to get token info")
}
