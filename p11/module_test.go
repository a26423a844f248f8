package p11

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/miekg/pkcs11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Open_BadPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
	assert.Equal(t, "provider library path not specified", err.Error())

	_, err = Open("/nonexistent/libsofthsm2.so")
	require.Error(t, err)
}

func Test_Provider_CloseOnce(t *testing.T) {
	m, err := NewSampleModule()
	require.NoError(t, err)

	prov := NewProvider(m)
	prov.Close()
	prov.Close()
	assert.Equal(t, 1, m.Stats.Finalized)
}

func Test_ErrorPredicates(t *testing.T) {
	notSupported := pkcs11.Error(pkcs11.CKR_FUNCTION_NOT_SUPPORTED)
	assert.True(t, IsNotSupported(notSupported))
	assert.True(t, IsNotSupported(errors.WithMessage(notSupported, "GetSlotInfo")))
	assert.False(t, IsNotSupported(pkcs11.Error(pkcs11.CKR_GENERAL_ERROR)))
	assert.False(t, IsNotSupported(errors.New("other")))
	assert.False(t, IsNotSupported(nil))

	assert.True(t, IsSignatureInvalid(pkcs11.Error(pkcs11.CKR_SIGNATURE_INVALID)))
	assert.True(t, IsSignatureInvalid(pkcs11.Error(pkcs11.CKR_SIGNATURE_LEN_RANGE)))
	assert.False(t, IsSignatureInvalid(pkcs11.Error(pkcs11.CKR_DEVICE_ERROR)))

	assert.True(t, IsPinIncorrect(pkcs11.Error(pkcs11.CKR_PIN_INCORRECT)))
	assert.False(t, IsPinIncorrect(pkcs11.Error(pkcs11.CKR_PIN_LOCKED)))
}

func Test_MemModule_SessionChecks(t *testing.T) {
	m, err := NewSampleModule()
	require.NoError(t, err)

	// a parallel session is refused
	_, err = m.OpenSession(1, 0)
	require.Error(t, err)

	_, err = m.OpenSession(42, pkcs11.CKF_SERIAL_SESSION)
	require.Error(t, err)

	sh, err := m.OpenSession(1, pkcs11.CKF_SERIAL_SESSION)
	require.NoError(t, err)
	assert.Equal(t, 1, m.SessionCount())

	// double login and logout without login
	require.NoError(t, m.Login(sh, pkcs11.CKU_USER, "1234"))
	err = m.Login(sh, pkcs11.CKU_USER, "1234")
	require.Error(t, err)
	require.NoError(t, m.Logout(sh))
	err = m.Logout(sh)
	require.Error(t, err)

	require.NoError(t, m.CloseSession(sh))
	assert.Zero(t, m.SessionCount())
	err = m.CloseSession(sh)
	require.Error(t, err)
}
