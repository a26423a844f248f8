package cli

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/p11tool/p11"
	"github.com/miekg/pkcs11"
)

// SignCmd signs a payload and verifies the result against the
// matching public key
type SignCmd struct {
	SessionFlags

	KeyID string `help:"select the signing key by hex CKA_ID"`
	Label string `help:"select the signing key by CKA_LABEL"`
	Data  string `help:"literal payload to sign"`
	Size  int    `help:"sign a zero payload of this many bytes"`
	Mech  string `help:"signing mechanism (CKM_* name or code)" default:"CKM_RSA_PKCS"`
}

// Run the command
func (a *SignCmd) Run(ctx *Cli) error {
	mech, err := p11.MechanismByName(a.Mech)
	if err != nil {
		return err
	}
	payload, err := signPayload(a.Data, a.Size)
	if err != nil {
		return err
	}

	ins, sh, _, closer, err := ctx.session(&a.SessionFlags)
	if err != nil {
		return err
	}
	defer closer()

	filter, err := keyFilter(pkcs11.CKO_PRIVATE_KEY, a.KeyID, a.Label)
	if err != nil {
		return err
	}
	key, err := findKey(ins.Module, sh, filter, "private key")
	if err != nil {
		return err
	}

	return p11.SignSelfVerify(ins.Module, sh, key, mech, payload, ctx.Writer())
}

// signPayload builds the data to sign: a literal value, or a zero
// buffer of the requested size.
func signPayload(data string, size int) ([]byte, error) {
	switch {
	case data != "" && size > 0:
		return nil, errors.New("use either --data or --size, not both")
	case data != "":
		return []byte(data), nil
	case size > 0:
		return make([]byte, size), nil
	default:
		return nil, errors.New("use --data or --size to provide a payload")
	}
}
