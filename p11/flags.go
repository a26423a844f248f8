package p11

import (
	"strings"

	"github.com/miekg/pkcs11"
)

// FlagName associates a CKF_* bit with its printed name. Tables are
// rendered in declaration order, not bit order.
type FlagName struct {
	Name string
	Bit  uint
}

// SlotFlagNames describes CK_SLOT_INFO flags
var SlotFlagNames = []FlagName{
	{"CKF_TOKEN_PRESENT", pkcs11.CKF_TOKEN_PRESENT},
	{"CKF_REMOVABLE_DEVICE", pkcs11.CKF_REMOVABLE_DEVICE},
	{"CKF_HW_SLOT", pkcs11.CKF_HW_SLOT},
}

// TokenFlagNames describes CK_TOKEN_INFO flags
var TokenFlagNames = []FlagName{
	{"CKF_RNG", pkcs11.CKF_RNG},
	{"CKF_WRITE_PROTECTED", pkcs11.CKF_WRITE_PROTECTED},
	{"CKF_LOGIN_REQUIRED", pkcs11.CKF_LOGIN_REQUIRED},
	{"CKF_USER_PIN_INITIALIZED", pkcs11.CKF_USER_PIN_INITIALIZED},
	{"CKF_RESTORE_KEY_NOT_NEEDED", pkcs11.CKF_RESTORE_KEY_NOT_NEEDED},
	{"CKF_CLOCK_ON_TOKEN", pkcs11.CKF_CLOCK_ON_TOKEN},
	{"CKF_PROTECTED_AUTHENTICATION_PATH", pkcs11.CKF_PROTECTED_AUTHENTICATION_PATH},
	{"CKF_DUAL_CRYPTO_OPERATIONS", pkcs11.CKF_DUAL_CRYPTO_OPERATIONS},
	{"CKF_TOKEN_INITIALIZED", pkcs11.CKF_TOKEN_INITIALIZED},
	{"CKF_SECONDARY_AUTHENTICATION", pkcs11.CKF_SECONDARY_AUTHENTICATION},
	{"CKF_USER_PIN_COUNT_LOW", pkcs11.CKF_USER_PIN_COUNT_LOW},
	{"CKF_USER_PIN_FINAL_TRY", pkcs11.CKF_USER_PIN_FINAL_TRY},
	{"CKF_USER_PIN_LOCKED", pkcs11.CKF_USER_PIN_LOCKED},
	{"CKF_USER_PIN_TO_BE_CHANGED", pkcs11.CKF_USER_PIN_TO_BE_CHANGED},
	{"CKF_SO_PIN_COUNT_LOW", pkcs11.CKF_SO_PIN_COUNT_LOW},
	{"CKF_SO_PIN_FINAL_TRY", pkcs11.CKF_SO_PIN_FINAL_TRY},
	{"CKF_SO_PIN_LOCKED", pkcs11.CKF_SO_PIN_LOCKED},
	{"CKF_SO_PIN_TO_BE_CHANGED", pkcs11.CKF_SO_PIN_TO_BE_CHANGED},
}

// SessionFlagNames describes CK_SESSION_INFO flags
var SessionFlagNames = []FlagName{
	{"CKF_RW_SESSION", pkcs11.CKF_RW_SESSION},
	{"CKF_SERIAL_SESSION", pkcs11.CKF_SERIAL_SESSION},
}

// MechanismFlagNames describes CK_MECHANISM_INFO flags
var MechanismFlagNames = []FlagName{
	{"CKF_HW", pkcs11.CKF_HW},
	{"CKF_ENCRYPT", pkcs11.CKF_ENCRYPT},
	{"CKF_DECRYPT", pkcs11.CKF_DECRYPT},
	{"CKF_DIGEST", pkcs11.CKF_DIGEST},
	{"CKF_SIGN", pkcs11.CKF_SIGN},
	{"CKF_SIGN_RECOVER", pkcs11.CKF_SIGN_RECOVER},
	{"CKF_VERIFY", pkcs11.CKF_VERIFY},
	{"CKF_VERIFY_RECOVER", pkcs11.CKF_VERIFY_RECOVER},
	{"CKF_GENERATE", pkcs11.CKF_GENERATE},
	{"CKF_GENERATE_KEY_PAIR", pkcs11.CKF_GENERATE_KEY_PAIR},
	{"CKF_WRAP", pkcs11.CKF_WRAP},
	{"CKF_UNWRAP", pkcs11.CKF_UNWRAP},
	{"CKF_DERIVE", pkcs11.CKF_DERIVE},
	{"CKF_EXTENSION", pkcs11.CKF_EXTENSION},
}

// FlagNames renders the set bits of flags as a |-joined list of names,
// in table declaration order. Unset and unlisted bits are omitted.
func FlagNames(table []FlagName, flags uint) string {
	var b strings.Builder
	for _, f := range table {
		if flags&f.Bit == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		b.WriteString(f.Name)
	}
	return b.String()
}
