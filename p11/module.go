package p11

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/miekg/pkcs11"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/p11tool", "p11")

// Module is the PKCS#11 operation table the client depends on.
// The method set mirrors pkcs11.Ctx so a dynamically loaded provider
// satisfies it directly; MemModule provides a deterministic in-memory
// implementation for tests.
//
// A provider that does not implement an operation reports
// CKR_FUNCTION_NOT_SUPPORTED; callers degrade with IsNotSupported
// rather than failing outright.
type Module interface {
	Initialize(opts ...pkcs11.InitializeOption) error
	Finalize() error
	GetInfo() (pkcs11.Info, error)
	GetSlotList(tokenPresent bool) ([]uint, error)
	GetSlotInfo(slotID uint) (pkcs11.SlotInfo, error)
	GetTokenInfo(slotID uint) (pkcs11.TokenInfo, error)
	GetMechanismList(slotID uint) ([]*pkcs11.Mechanism, error)
	GetMechanismInfo(slotID uint, m []*pkcs11.Mechanism) (pkcs11.MechanismInfo, error)
	OpenSession(slotID uint, flags uint) (pkcs11.SessionHandle, error)
	CloseSession(sh pkcs11.SessionHandle) error
	GetSessionInfo(sh pkcs11.SessionHandle) (pkcs11.SessionInfo, error)
	Login(sh pkcs11.SessionHandle, userType uint, pin string) error
	Logout(sh pkcs11.SessionHandle) error
	GetAttributeValue(sh pkcs11.SessionHandle, o pkcs11.ObjectHandle, a []*pkcs11.Attribute) ([]*pkcs11.Attribute, error)
	FindObjectsInit(sh pkcs11.SessionHandle, temp []*pkcs11.Attribute) error
	FindObjects(sh pkcs11.SessionHandle, max int) ([]pkcs11.ObjectHandle, bool, error)
	FindObjectsFinal(sh pkcs11.SessionHandle) error
	SignInit(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism, o pkcs11.ObjectHandle) error
	Sign(sh pkcs11.SessionHandle, message []byte) ([]byte, error)
	VerifyInit(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism, key pkcs11.ObjectHandle) error
	Verify(sh pkcs11.SessionHandle, data []byte, signature []byte) error
}

// Ensure the dynamic binding satisfies the contract.
var _ Module = (*pkcs11.Ctx)(nil)

// Provider owns a loaded module for the lifetime of the process.
// Close releases it exactly once, best-effort.
type Provider struct {
	Module

	Lib string

	ctx  *pkcs11.Ctx
	once sync.Once
}

// Open loads the provider library at path and initializes it.
func Open(path string) (*Provider, error) {
	if path == "" {
		return nil, errors.New("provider library path not specified")
	}
	ctx := pkcs11.New(path)
	if ctx == nil {
		return nil, errors.Errorf("unable to load provider library: %s", path)
	}
	if err := ctx.Initialize(); err != nil {
		ctx.Destroy()
		return nil, errors.WithMessagef(err, "C_Initialize on %s", path)
	}
	logger.Debugf("loaded=%q", path)
	return &Provider{Module: ctx, Lib: path, ctx: ctx}, nil
}

// NewProvider wraps an already initialized module, typically MemModule.
func NewProvider(m Module) *Provider {
	return &Provider{Module: m}
}

// Close finalizes the provider. Errors are logged, not escalated:
// this runs on every exit path, including after earlier failures.
func (p *Provider) Close() {
	p.once.Do(func() {
		if err := p.Finalize(); err != nil {
			logger.Errorf("reason=Finalize, lib=%q, err=[%v]", p.Lib, err)
		}
		if p.ctx != nil {
			p.ctx.Destroy()
		}
	})
}

// IsNotSupported reports whether err signals an operation absent from
// the provider's function table.
func IsNotSupported(err error) bool {
	var pe pkcs11.Error
	return errors.As(err, &pe) && uint(pe) == pkcs11.CKR_FUNCTION_NOT_SUPPORTED
}

// IsPinIncorrect reports whether err signals a rejected PIN.
func IsPinIncorrect(err error) bool {
	var pe pkcs11.Error
	return errors.As(err, &pe) && uint(pe) == pkcs11.CKR_PIN_INCORRECT
}

// IsSignatureInvalid reports whether err is a genuine verification
// mismatch rather than a transport or usage failure.
func IsSignatureInvalid(err error) bool {
	var pe pkcs11.Error
	if !errors.As(err, &pe) {
		return false
	}
	return uint(pe) == pkcs11.CKR_SIGNATURE_INVALID ||
		uint(pe) == pkcs11.CKR_SIGNATURE_LEN_RANGE
}
