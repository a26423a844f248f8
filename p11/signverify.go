package p11

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/miekg/pkcs11"
)

// DefaultMechanism parameterizes sign/verify unless overridden.
const DefaultMechanism = pkcs11.CKM_RSA_PKCS

// ErrSignatureInvalid reports a genuine verification mismatch, as
// opposed to a transport or usage failure.
var ErrSignatureInvalid = errors.New("signature does not verify")

// SignData signs payload with the key object using mech.
func SignData(m Module, sh pkcs11.SessionHandle, key pkcs11.ObjectHandle, mech uint, payload []byte) ([]byte, error) {
	err := m.SignInit(sh, []*pkcs11.Mechanism{pkcs11.NewMechanism(mech, nil)}, key)
	if err != nil {
		return nil, errors.WithMessage(err, "SignInit")
	}
	sig, err := m.Sign(sh, payload)
	if err != nil {
		return nil, errors.WithMessage(err, "Sign")
	}
	return sig, nil
}

// FindVerifyKey locates the public counterpart of a signing key: the
// single CKO_PUBLIC_KEY object sharing the key's CKA_ID. Zero or more
// than one match is an error; a missing or ambiguous counterpart must
// be reported, not silently picked.
func FindVerifyKey(m Module, sh pkcs11.SessionHandle, signingKey pkcs11.ObjectHandle) (pkcs11.ObjectHandle, error) {
	id, err := ReadAttr(m, sh, signingKey, pkcs11.CKA_ID)
	if err != nil {
		return 0, errors.WithMessage(err, "key identifier")
	}

	filter := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_ID, id),
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
	}
	matches, err := FindObjects(m, sh, filter)
	if err != nil {
		return 0, err
	}
	switch len(matches) {
	case 0:
		return 0, errors.Errorf("no public key found for id %x", id)
	case 1:
		return matches[0], nil
	default:
		return 0, errors.Errorf("ambiguous key id %x: %d public keys found", id, len(matches))
	}
}

// VerifyData verifies signature over data with the key object.
// ErrSignatureInvalid is returned for a mismatch; other errors signal
// a transport or usage failure.
func VerifyData(m Module, sh pkcs11.SessionHandle, key pkcs11.ObjectHandle, mech uint, data, signature []byte) error {
	err := m.VerifyInit(sh, []*pkcs11.Mechanism{pkcs11.NewMechanism(mech, nil)}, key)
	if err != nil {
		return errors.WithMessage(err, "VerifyInit")
	}
	err = m.Verify(sh, data, signature)
	if err != nil {
		if IsSignatureInvalid(err) {
			// Mark keeps the CKR code reachable in the chain while
			// tagging the sentinel for errors.Is.
			return errors.Mark(errors.WithStack(err), ErrSignatureInvalid)
		}
		return errors.WithMessage(err, "Verify")
	}
	return nil
}

// SignSelfVerify signs payload with the selected key, locates the
// matching public key by shared identifier, and verifies the produced
// signature against it. The session must be open and, for most
// tokens, authenticated. When the provider lacks verification support
// the workflow stops after signing and reports the limitation.
func SignSelfVerify(m Module, sh pkcs11.SessionHandle, key pkcs11.ObjectHandle, mech uint, payload []byte, out io.Writer) error {
	sig, err := SignData(m, sh, key, mech, payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Signature size = %d, data = %s\n", len(sig), hex.EncodeToString(sig))

	verifyKey, err := FindVerifyKey(m, sh, key)
	if err != nil {
		return err
	}

	err = VerifyData(m, sh, verifyKey, mech, payload, sig)
	if err != nil {
		if IsNotSupported(err) {
			fmt.Fprintf(out, "Verify is not supported by this provider\n")
			return nil
		}
		return err
	}
	fmt.Fprintf(out, "signature was good!\n")
	return nil
}
