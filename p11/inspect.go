package p11

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/p11tool/pinentry"
	"github.com/miekg/pkcs11"
)

// Inspector owns a single session against a provider and sequences
// the introspection workflow: open, optional login, per-class object
// enumeration with attribute dumps, close. It is not safe for
// concurrent use; one goroutine drives the session for its lifetime.
type Inspector struct {
	Module Module
	Out    io.Writer

	// Pin supplies the login secret when the token does not manage
	// authentication itself.
	Pin pinentry.Source

	// NoLogin skips the login step entirely.
	NoLogin bool

	// RequireToken limits slot listing to slots with a token present.
	RequireToken bool

	// Slot selects a slot explicitly; nil picks the slot holding the
	// token labeled TokenLabel, or the first listed slot.
	Slot *uint

	// TokenLabel selects the slot by token label when Slot is nil.
	TokenLabel string
}

// classesOfInterest are enumerated, in order, by DumpAllClasses.
var classesOfInterest = []uint{
	pkcs11.CKO_CERTIFICATE,
	pkcs11.CKO_PUBLIC_KEY,
	pkcs11.CKO_PRIVATE_KEY,
	pkcs11.CKO_VENDOR_DEFINED,
}

// DumpLibraryInfo prints provider library metadata.
func (ins *Inspector) DumpLibraryInfo() {
	info, err := ins.Module.GetInfo()
	if err != nil {
		ins.report("unable to get library info", err)
		return
	}
	out := ins.Out
	fmt.Fprintf(out, "PKCS#11 Version: %d.%d\n", info.CryptokiVersion.Major, info.CryptokiVersion.Minor)
	fmt.Fprintf(out, "Lib manufacturer: %s\n", TrimPadding([]byte(info.ManufacturerID)))
	fmt.Fprintf(out, "Lib description: %s\n", TrimPadding([]byte(info.LibraryDescription)))
	fmt.Fprintf(out, "Lib version: %d.%d\n", info.LibraryVersion.Major, info.LibraryVersion.Minor)
	fmt.Fprintf(out, "Lib flags: %d\n", info.Flags)
}

// SelectSlot lists the provider's slots and returns the one to use:
// the configured slot when set, the slot holding the token with the
// configured label next, the first listed slot otherwise. When slot
// introspection is unsupported the first slot is still assumed valid;
// that fallback is best-effort, not a verified guarantee.
func (ins *Inspector) SelectSlot() (uint, error) {
	slots, err := ins.Module.GetSlotList(ins.RequireToken)
	if err != nil {
		return 0, errors.WithMessage(err, "GetSlotList")
	}
	if len(slots) == 0 {
		return 0, errors.New("no slots found")
	}

	fmt.Fprintf(ins.Out, "Found %d slots\n", len(slots))

	for _, slotID := range slots {
		si, err := ins.Module.GetSlotInfo(slotID)
		if err != nil {
			if IsNotSupported(err) {
				ins.report("GetSlotInfo is not supported, assuming first slot is valid", nil)
				break
			}
			continue
		}
		fmt.Fprintf(ins.Out, "Slot %d description: %s\n", slotID, TrimPadding([]byte(si.SlotDescription)))
	}

	if ins.Slot != nil {
		return *ins.Slot, nil
	}
	if ins.TokenLabel != "" {
		for _, slotID := range slots {
			ti, err := ins.Module.GetTokenInfo(slotID)
			if err != nil {
				continue
			}
			if TrimPadding([]byte(ti.Label)) == ins.TokenLabel {
				return slotID, nil
			}
		}
		return 0, errors.Errorf("no token with label %q found", ins.TokenLabel)
	}
	return slots[0], nil
}

// DumpSlotInfo prints slot capabilities.
func (ins *Inspector) DumpSlotInfo(slotID uint) {
	si, err := ins.Module.GetSlotInfo(slotID)
	if err != nil {
		ins.report("unable to get slot info", err)
		return
	}
	out := ins.Out
	fmt.Fprintf(out, "Slot Description: %s\n", TrimPadding([]byte(si.SlotDescription)))
	fmt.Fprintf(out, "Slot Manufacturer: %s\n", TrimPadding([]byte(si.ManufacturerID)))
	fmt.Fprintf(out, "Slot HW version: %d.%d\n", si.HardwareVersion.Major, si.HardwareVersion.Minor)
	fmt.Fprintf(out, "Slot FW version: %d.%d\n", si.FirmwareVersion.Major, si.FirmwareVersion.Minor)
	fmt.Fprintf(out, "Slot flags: %s\n", FlagNames(SlotFlagNames, si.Flags))
}

// DumpTokenInfo prints token capabilities and returns the token info
// for the login step. A failure is reported and returns a zero value.
func (ins *Inspector) DumpTokenInfo(slotID uint) pkcs11.TokenInfo {
	ti, err := ins.Module.GetTokenInfo(slotID)
	if err != nil {
		ins.report("unable to get token info", err)
		return pkcs11.TokenInfo{}
	}
	out := ins.Out
	fmt.Fprintf(out, "Token label: %s\n", TrimPadding([]byte(ti.Label)))
	fmt.Fprintf(out, "Token Manufacturer: %s\n", TrimPadding([]byte(ti.ManufacturerID)))
	fmt.Fprintf(out, "Token Model: %s\n", TrimPadding([]byte(ti.Model)))
	fmt.Fprintf(out, "Token Serial: %s\n", TrimPadding([]byte(ti.SerialNumber)))
	fmt.Fprintf(out, "Token flags: %s\n", FlagNames(TokenFlagNames, ti.Flags))
	fmt.Fprintf(out, "Token MaxSessionCount = %d\n", ti.MaxSessionCount)
	fmt.Fprintf(out, "Token SessionCount = %d\n", ti.SessionCount)
	fmt.Fprintf(out, "Token MaxRwSessionCount = %d\n", ti.MaxRwSessionCount)
	fmt.Fprintf(out, "Token RwSessionCount = %d\n", ti.RwSessionCount)
	fmt.Fprintf(out, "Token Max PIN len = %d\n", ti.MaxPinLen)
	fmt.Fprintf(out, "Token Min PIN len = %d\n", ti.MinPinLen)
	fmt.Fprintf(out, "Token total public mem = %d\n", ti.TotalPublicMemory)
	fmt.Fprintf(out, "Token free public mem = %d\n", ti.FreePublicMemory)
	fmt.Fprintf(out, "Token total private mem = %d\n", ti.TotalPrivateMemory)
	fmt.Fprintf(out, "Token free private mem = %d\n", ti.FreePrivateMemory)
	fmt.Fprintf(out, "Token hardware version = %d.%d\n", ti.HardwareVersion.Major, ti.HardwareVersion.Minor)
	fmt.Fprintf(out, "Token firmware version = %d.%d\n", ti.FirmwareVersion.Major, ti.FirmwareVersion.Minor)
	fmt.Fprintf(out, "Token utcTime = %s\n", TrimPadding([]byte(ti.UTCTime)))
	return ti
}

// DumpMechanisms prints the token's mechanism list with per-mechanism
// capabilities. An unsupported operation is reported, not fatal.
func (ins *Inspector) DumpMechanisms(slotID uint) {
	mechs, err := ins.Module.GetMechanismList(slotID)
	if err != nil {
		ins.report("GetMechanismList failed", err)
		return
	}
	out := ins.Out
	fmt.Fprintf(out, "Token supports %d mechanism%s\n", len(mechs), plural(len(mechs)))
	for _, mech := range mechs {
		fmt.Fprintf(out, "%s\n", MechanismName(mech.Mechanism))
		mi, err := ins.Module.GetMechanismInfo(slotID, []*pkcs11.Mechanism{mech})
		if err != nil {
			ins.report("GetMechanismInfo failed", err)
			break
		}
		fmt.Fprintf(out, "Min key size = %d, max key size = %d\n", mi.MinKeySize, mi.MaxKeySize)
		fmt.Fprintf(out, "Flags: %s\n", FlagNames(MechanismFlagNames, mi.Flags))
	}
}

// OpenSession opens a read-only serial session on the slot.
func (ins *Inspector) OpenSession(slotID uint) (pkcs11.SessionHandle, error) {
	sh, err := ins.Module.OpenSession(slotID, pkcs11.CKF_SERIAL_SESSION)
	if err != nil {
		return 0, errors.WithMessagef(err, "OpenSession on slot %d", slotID)
	}
	return sh, nil
}

// DumpSessionInfo prints session state.
func (ins *Inspector) DumpSessionInfo(sh pkcs11.SessionHandle) {
	si, err := ins.Module.GetSessionInfo(sh)
	if err != nil {
		ins.report("unable to get session info", err)
		return
	}
	out := ins.Out
	fmt.Fprintf(out, "Session slot: %d\n", si.SlotID)
	fmt.Fprintf(out, "Session state: %d\n", si.State)
	fmt.Fprintf(out, "Session flags: %s\n", FlagNames(SessionFlagNames, si.Flags))
	fmt.Fprintf(out, "Session device errors: %d\n", si.DeviceError)
}

// Login authenticates the session as CKU_USER. A token with a
// protected authentication path manages secret entry itself and must
// not receive a locally sourced PIN; it gets a null-credential login.
// Otherwise the secret comes from the configured source and its buffer
// is wiped after submission regardless of outcome.
func (ins *Inspector) Login(sh pkcs11.SessionHandle, ti pkcs11.TokenInfo) error {
	if ti.Flags&pkcs11.CKF_PROTECTED_AUTHENTICATION_PATH != 0 {
		fmt.Fprintf(ins.Out, "Protected authentication path found, not prompting PIN\n")
		if err := ins.Module.Login(sh, pkcs11.CKU_USER, ""); err != nil {
			return errors.WithMessage(err, "Login")
		}
		return nil
	}

	if ins.Pin == nil {
		return errors.New("no PIN source configured")
	}
	pin, err := ins.Pin.Pin()
	if err != nil {
		return errors.WithMessage(err, "unable to obtain PIN")
	}
	err = ins.Module.Login(sh, pkcs11.CKU_USER, string(pin))
	pinentry.Wipe(pin)
	if err != nil {
		return errors.WithMessage(err, "Login")
	}
	return nil
}

// DumpObjects enumerates the objects matching filter and dumps each
// one's class-specific attribute set. Per-object failures are
// reported and do not abort the remaining objects.
func (ins *Inspector) DumpObjects(sh pkcs11.SessionHandle, filter []*pkcs11.Attribute) error {
	index := 0
	return ForEachObject(ins.Module, sh, filter, func(obj pkcs11.ObjectHandle) error {
		ins.dumpObject(sh, obj, index)
		index++
		return nil
	})
}

// DumpAllClasses runs the full object sweep: every object first, then
// each class of interest with a class filter. Enumeration failures
// abort the sweep; attribute failures do not.
func (ins *Inspector) DumpAllClasses(sh pkcs11.SessionHandle) error {
	if err := ins.DumpObjects(sh, nil); err != nil {
		return err
	}
	for _, class := range classesOfInterest {
		fmt.Fprintf(ins.Out, "Objects of class %s:\n", ObjectClassName(class))
		if err := ins.DumpObjects(sh, ClassFilter(class)); err != nil {
			return err
		}
	}
	return nil
}

// Logout ends the authenticated state, best-effort.
func (ins *Inspector) Logout(sh pkcs11.SessionHandle) {
	if err := ins.Module.Logout(sh); err != nil && !IsNotSupported(err) {
		logger.Warningf("reason=Logout, err=[%v]", err)
	}
}

// CloseSession closes the session, best-effort.
func (ins *Inspector) CloseSession(sh pkcs11.SessionHandle) {
	if err := ins.Module.CloseSession(sh); err != nil {
		logger.Warningf("reason=CloseSession, err=[%v]", err)
	}
}

// Run executes the complete inspection flow against the selected
// slot: library, slot, token and mechanism introspection, session
// open, optional login, and the full object sweep. The session is
// closed on every exit path; login failure closes it and propagates.
func (ins *Inspector) Run() error {
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

	if !ins.NoLogin {
		if err := ins.Login(sh, ti); err != nil {
			return err
		}
		defer ins.Logout(sh)
	}

	return ins.DumpAllClasses(sh)
}

// dumpObject prints one object's handle, class and class-specific
// attributes.
func (ins *Inspector) dumpObject(sh pkcs11.SessionHandle, obj pkcs11.ObjectHandle, index int) {
	fmt.Fprintf(ins.Out, "Object[%d] handle: %d\n", index, obj)
	class, ok := DumpAttrs(ins.Module, sh, obj, ins.Out, []AttrHandler{classAttrHandler})
	if !ok {
		return
	}
	handlers := HandlersForClass(class)
	if len(handlers) == 1 && handlers[0].Type == pkcs11.CKA_CLASS {
		// minimal table, class already printed
		return
	}
	DumpAttrs(ins.Module, sh, obj, ins.Out, handlers)
}

func (ins *Inspector) report(msg string, err error) {
	if err != nil {
		fmt.Fprintf(ins.Out, "%s (%v)\n", msg, err)
	} else {
		fmt.Fprintf(ins.Out, "%s\n", msg)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
