package cli

import (
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/p11tool/p11"
	"github.com/miekg/pkcs11"
)

// session opens a read-only session on the selected slot and, unless
// disabled by the flags, authenticates it. The returned closer logs
// out and closes the session; it must be called on every exit path.
func (c *Cli) session(flags *SessionFlags) (*p11.Inspector, pkcs11.SessionHandle, uint, func(), error) {
	ins, err := c.inspector(flags)
	if err != nil {
		return nil, 0, 0, nil, err
	}

	slotID, err := ins.SelectSlot()
	if err != nil {
		return nil, 0, 0, nil, err
	}

	sh, err := ins.OpenSession(slotID)
	if err != nil {
		return nil, 0, 0, nil, err
	}

	if !flags.NoLogin {
		ti, err := ins.Module.GetTokenInfo(slotID)
		if err != nil {
			logger.Warningf("reason=GetTokenInfo, slot=%d, err=[%v]", slotID, err)
		}
		if err := ins.Login(sh, ti); err != nil {
			ins.CloseSession(sh)
			return nil, 0, 0, nil, err
		}
	}

	closer := func() {
		if !flags.NoLogin {
			ins.Logout(sh)
		}
		ins.CloseSession(sh)
	}
	return ins, sh, slotID, closer, nil
}

// keyFilter builds an object filter for the given class, narrowed by
// a hex CKA_ID or a CKA_LABEL when supplied.
func keyFilter(class uint, keyID, label string) ([]*pkcs11.Attribute, error) {
	filter := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, class),
	}
	switch {
	case keyID != "":
		id, err := hex.DecodeString(keyID)
		if err != nil {
			return nil, errors.WithMessagef(err, "invalid key id %q", keyID)
		}
		filter = append(filter, pkcs11.NewAttribute(pkcs11.CKA_ID, id))
	case label != "":
		filter = append(filter, pkcs11.NewAttribute(pkcs11.CKA_LABEL, label))
	}
	return filter, nil
}

// findKey returns the first object matching the filter.
func findKey(m p11.Module, sh pkcs11.SessionHandle, filter []*pkcs11.Attribute, what string) (pkcs11.ObjectHandle, error) {
	matches, err := p11.FindObjects(m, sh, filter)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, errors.Errorf("no %s found", what)
	}
	return matches[0], nil
}
