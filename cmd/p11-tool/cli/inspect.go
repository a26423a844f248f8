package cli

import (
	"github.com/effective-security/p11tool/p11"
	"github.com/miekg/pkcs11"
)

// InspectCmd runs the complete token inspection flow
type InspectCmd struct {
	SessionFlags

	Sign  bool   `help:"after inspection, sign and self-verify a payload"`
	KeyID string `help:"signing key hex CKA_ID (with --sign)"`
	Label string `help:"signing key CKA_LABEL (with --sign)"`
	Size  int    `help:"sign payload size in bytes (with --sign)" default:"32"`
	Mech  string `help:"signing mechanism (with --sign)" default:"CKM_RSA_PKCS"`
}

// Run the command walks the whole provider surface in order: library,
// slot, token and mechanism introspection, session state, login, the
// object sweep, and optionally a sign/verify round trip in the same
// session.
func (a *InspectCmd) Run(ctx *Cli) error {
	ins, err := ctx.inspector(&a.SessionFlags)
	if err != nil {
		return err
	}

	ins.DumpLibraryInfo()

	slotID, err := ins.SelectSlot()
	if err != nil {
		return err
	}

	ins.DumpSlotInfo(slotID)
	ti := ins.DumpTokenInfo(slotID)
	ins.DumpMechanisms(slotID)

	sh, err := ins.OpenSession(slotID)
	if err != nil {
		return err
	}
	defer ins.CloseSession(sh)

	ins.DumpSessionInfo(sh)

	if !a.SessionFlags.NoLogin {
		if err := ins.Login(sh, ti); err != nil {
			return err
		}
		defer ins.Logout(sh)
	}

	if err := ins.DumpAllClasses(sh); err != nil {
		return err
	}

	if !a.Sign {
		return nil
	}

	mech, err := p11.MechanismByName(a.Mech)
	if err != nil {
		return err
	}
	filter, err := keyFilter(pkcs11.CKO_PRIVATE_KEY, a.KeyID, a.Label)
	if err != nil {
		return err
	}
	key, err := findKey(ins.Module, sh, filter, "private key")
	if err != nil {
		return err
	}
	return p11.SignSelfVerify(ins.Module, sh, key, mech, make([]byte, a.Size), ctx.Writer())
}
