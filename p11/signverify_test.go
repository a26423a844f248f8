package p11

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/miekg/pkcs11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signSession(t *testing.T) (*MemModule, pkcs11.SessionHandle, pkcs11.ObjectHandle) {
	m, err := NewSampleModule()
	require.NoError(t, err)

	sh, err := m.OpenSession(1, pkcs11.CKF_SERIAL_SESSION)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.CloseSession(sh)
	})
	require.NoError(t, m.Login(sh, pkcs11.CKU_USER, "1234"))

	keys, err := FindObjects(m, sh, ClassFilter(pkcs11.CKO_PRIVATE_KEY))
	require.NoError(t, err)
	require.Len(t, keys, 1)
	return m, sh, keys[0]
}

func Test_SignSelfVerify(t *testing.T) {
	m, sh, key := signSession(t)

	var out bytes.Buffer
	err := SignSelfVerify(m, sh, key, DefaultMechanism, []byte("payload"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Signature size = 128, data = ")
	assert.Contains(t, out.String(), "signature was good!")
}

func Test_SignVerify_RoundTrip(t *testing.T) {
	m, sh, key := signSession(t)

	data := []byte("data to sign")
	sig, err := SignData(m, sh, key, DefaultMechanism, data)
	require.NoError(t, err)
	require.Len(t, sig, 128)

	verifyKey, err := FindVerifyKey(m, sh, key)
	require.NoError(t, err)

	err = VerifyData(m, sh, verifyKey, DefaultMechanism, data, sig)
	require.NoError(t, err)

	// a corrupted signature is a mismatch, not a transport failure
	sig[0] ^= 0xFF
	err = VerifyData(m, sh, verifyKey, DefaultMechanism, data, sig)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
	assert.True(t, IsSignatureInvalid(err))

	// the CKR code stays reachable alongside the sentinel
	var pe pkcs11.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, uint(pkcs11.CKR_SIGNATURE_INVALID), uint(pe))

	// so is a signature over different data
	sig[0] ^= 0xFF
	err = VerifyData(m, sh, verifyKey, DefaultMechanism, []byte("other data"), sig)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func Test_FindVerifyKey_Missing(t *testing.T) {
	m, sh, key := signSession(t)

	// orphan the public counterpart
	pubs, err := FindObjects(m, sh, ClassFilter(pkcs11.CKO_PUBLIC_KEY))
	require.NoError(t, err)
	require.Len(t, pubs, 1)
	m.tokens[1].objects[pubs[0]].Attrs[pkcs11.CKA_ID] = []byte("other")

	_, err = FindVerifyKey(m, sh, key)
	require.Error(t, err)
	assert.Equal(t, "no public key found for id 69642d31", err.Error())
}

func Test_FindVerifyKey_Ambiguous(t *testing.T) {
	m, sh, key := signSession(t)

	m.AddObject(1, map[uint][]byte{
		pkcs11.CKA_CLASS: ulongBytes(pkcs11.CKO_PUBLIC_KEY),
		pkcs11.CKA_ID:    []byte("id-1"),
	})

	_, err := FindVerifyKey(m, sh, key)
	require.Error(t, err)
	assert.Equal(t, "ambiguous key id 69642d31: 2 public keys found", err.Error())
}

func Test_SignSelfVerify_Unsupported(t *testing.T) {
	m, sh, key := signSession(t)
	m.SetUnsupported("VerifyInit")

	var out bytes.Buffer
	err := SignSelfVerify(m, sh, key, DefaultMechanism, []byte("payload"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Verify is not supported by this provider")
	assert.NotContains(t, out.String(), "signature was good!")
}

func Test_SignData_BadMechanism(t *testing.T) {
	m, sh, key := signSession(t)

	_, err := SignData(m, sh, key, pkcs11.CKM_SHA256_RSA_PKCS, []byte("payload"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SignInit")
}

func Test_SignData_PayloadTooLong(t *testing.T) {
	m, sh, key := signSession(t)

	// PKCS#1 v1.5 with a 1024-bit key caps the payload at 117 bytes
	_, err := SignData(m, sh, key, DefaultMechanism, make([]byte, 118))
	require.Error(t, err)

	sig, err := SignData(m, sh, key, DefaultMechanism, make([]byte, 117))
	require.NoError(t, err)
	assert.Len(t, sig, 128)
}
