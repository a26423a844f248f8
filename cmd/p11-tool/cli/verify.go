package cli

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/p11tool/p11"
	"github.com/effective-security/p11tool/x/ctl"
	"github.com/miekg/pkcs11"
)

// VerifyCmd verifies a detached signature with a public key on the
// token
type VerifyCmd struct {
	SessionFlags

	Data      string `kong:"arg" required:"" help:"path to the signed data"`
	Signature string `kong:"arg" required:"" help:"path to the signature"`
	KeyID     string `help:"select the public key by hex CKA_ID"`
	Label     string `help:"select the public key by CKA_LABEL"`
	Mech      string `help:"verification mechanism (CKM_* name or code)" default:"CKM_RSA_PKCS"`
}

// Run the command
func (a *VerifyCmd) Run(ctx *Cli) error {
	mech, err := p11.MechanismByName(a.Mech)
	if err != nil {
		return err
	}
	if err := ctl.FileExists(a.Data); err != nil {
		return errors.WithMessagef(err, "unable to read data file %q", a.Data)
	}
	if err := ctl.FileExists(a.Signature); err != nil {
		return errors.WithMessagef(err, "unable to read signature file %q", a.Signature)
	}
	data, err := os.ReadFile(a.Data)
	if err != nil {
		return errors.WithMessagef(err, "unable to read data file %q", a.Data)
	}
	sig, err := os.ReadFile(a.Signature)
	if err != nil {
		return errors.WithMessagef(err, "unable to read signature file %q", a.Signature)
	}

	ins, sh, _, closer, err := ctx.session(&a.SessionFlags)
	if err != nil {
		return err
	}
	defer closer()

	filter, err := keyFilter(pkcs11.CKO_PUBLIC_KEY, a.KeyID, a.Label)
	if err != nil {
		return err
	}
	key, err := findKey(ins.Module, sh, filter, "public key")
	if err != nil {
		return err
	}

	err = p11.VerifyData(ins.Module, sh, key, mech, data, sig)
	if err != nil {
		if errors.Is(err, p11.ErrSignatureInvalid) {
			fmt.Fprintf(ctx.Writer(), "signature does not verify\n")
		}
		return err
	}
	fmt.Fprintf(ctx.Writer(), "signature was good!\n")
	return nil
}
