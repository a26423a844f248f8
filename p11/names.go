package p11

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/miekg/pkcs11"
)

// Human names for the enum codes the dump output renders. Codes not
// listed fall back to the numeric form.

// ObjectClassNames maps CKO_* codes to names
var ObjectClassNames = map[uint]string{
	pkcs11.CKO_DATA:              "CKO_DATA",
	pkcs11.CKO_CERTIFICATE:       "CKO_CERTIFICATE",
	pkcs11.CKO_PUBLIC_KEY:        "CKO_PUBLIC_KEY",
	pkcs11.CKO_PRIVATE_KEY:       "CKO_PRIVATE_KEY",
	pkcs11.CKO_SECRET_KEY:        "CKO_SECRET_KEY",
	pkcs11.CKO_HW_FEATURE:        "CKO_HW_FEATURE",
	pkcs11.CKO_DOMAIN_PARAMETERS: "CKO_DOMAIN_PARAMETERS",
	pkcs11.CKO_MECHANISM:         "CKO_MECHANISM",
	pkcs11.CKO_OTP_KEY:           "CKO_OTP_KEY",
	pkcs11.CKO_VENDOR_DEFINED:    "CKO_VENDOR_DEFINED",
}

// KeyTypeNames maps CKK_* codes to names
var KeyTypeNames = map[uint]string{
	pkcs11.CKK_RSA:            "CKK_RSA",
	pkcs11.CKK_DSA:            "CKK_DSA",
	pkcs11.CKK_DH:             "CKK_DH",
	pkcs11.CKK_EC:             "CKK_EC",
	pkcs11.CKK_GENERIC_SECRET: "CKK_GENERIC_SECRET",
	pkcs11.CKK_DES3:           "CKK_DES3",
	pkcs11.CKK_AES:            "CKK_AES",
}

// CertTypeNames maps CKC_* codes to names
var CertTypeNames = map[uint]string{
	pkcs11.CKC_X_509:           "X.509 Certificate",
	pkcs11.CKC_X_509_ATTR_CERT: "X.509 Attribute Certificate",
	pkcs11.CKC_WTLS:            "WTLS Certificate",
}

// MechanismNames maps the common CKM_* codes to names
var MechanismNames = map[uint]string{
	pkcs11.CKM_RSA_PKCS_KEY_PAIR_GEN:  "CKM_RSA_PKCS_KEY_PAIR_GEN",
	pkcs11.CKM_RSA_PKCS:               "CKM_RSA_PKCS",
	pkcs11.CKM_RSA_X_509:              "CKM_RSA_X_509",
	pkcs11.CKM_RSA_PKCS_OAEP:          "CKM_RSA_PKCS_OAEP",
	pkcs11.CKM_RSA_PKCS_PSS:           "CKM_RSA_PKCS_PSS",
	pkcs11.CKM_SHA1_RSA_PKCS:          "CKM_SHA1_RSA_PKCS",
	pkcs11.CKM_SHA256_RSA_PKCS:        "CKM_SHA256_RSA_PKCS",
	pkcs11.CKM_SHA384_RSA_PKCS:        "CKM_SHA384_RSA_PKCS",
	pkcs11.CKM_SHA512_RSA_PKCS:        "CKM_SHA512_RSA_PKCS",
	pkcs11.CKM_SHA256_RSA_PKCS_PSS:    "CKM_SHA256_RSA_PKCS_PSS",
	pkcs11.CKM_DSA:                    "CKM_DSA",
	pkcs11.CKM_EC_KEY_PAIR_GEN:        "CKM_EC_KEY_PAIR_GEN",
	pkcs11.CKM_ECDSA:                  "CKM_ECDSA",
	pkcs11.CKM_ECDSA_SHA1:             "CKM_ECDSA_SHA1",
	pkcs11.CKM_ECDSA_SHA256:           "CKM_ECDSA_SHA256",
	pkcs11.CKM_ECDSA_SHA384:           "CKM_ECDSA_SHA384",
	pkcs11.CKM_ECDSA_SHA512:           "CKM_ECDSA_SHA512",
	pkcs11.CKM_ECDH1_DERIVE:           "CKM_ECDH1_DERIVE",
	pkcs11.CKM_SHA_1:                  "CKM_SHA_1",
	pkcs11.CKM_SHA256:                 "CKM_SHA256",
	pkcs11.CKM_SHA384:                 "CKM_SHA384",
	pkcs11.CKM_SHA512:                 "CKM_SHA512",
	pkcs11.CKM_MD5:                    "CKM_MD5",
	pkcs11.CKM_DES3_KEY_GEN:           "CKM_DES3_KEY_GEN",
	pkcs11.CKM_DES3_CBC:               "CKM_DES3_CBC",
	pkcs11.CKM_AES_KEY_GEN:            "CKM_AES_KEY_GEN",
	pkcs11.CKM_AES_ECB:                "CKM_AES_ECB",
	pkcs11.CKM_AES_CBC:                "CKM_AES_CBC",
	pkcs11.CKM_AES_CBC_PAD:            "CKM_AES_CBC_PAD",
	pkcs11.CKM_AES_GCM:                "CKM_AES_GCM",
	pkcs11.CKM_AES_KEY_WRAP:           "CKM_AES_KEY_WRAP",
	pkcs11.CKM_GENERIC_SECRET_KEY_GEN: "CKM_GENERIC_SECRET_KEY_GEN",
}

// AttributeNames maps the CKA_* codes used in dumps to names
var AttributeNames = map[uint]string{
	pkcs11.CKA_CLASS:              "CKA_CLASS",
	pkcs11.CKA_APPLICATION:        "CKA_APPLICATION",
	pkcs11.CKA_VALUE:              "CKA_VALUE",
	pkcs11.CKA_OBJECT_ID:          "CKA_OBJECT_ID",
	pkcs11.CKA_CERTIFICATE_TYPE:   "CKA_CERTIFICATE_TYPE",
	pkcs11.CKA_ISSUER:             "CKA_ISSUER",
	pkcs11.CKA_SERIAL_NUMBER:      "CKA_SERIAL_NUMBER",
	pkcs11.CKA_KEY_TYPE:           "CKA_KEY_TYPE",
	pkcs11.CKA_SUBJECT:            "CKA_SUBJECT",
	pkcs11.CKA_ID:                 "CKA_ID",
	pkcs11.CKA_LABEL:              "CKA_LABEL",
	pkcs11.CKA_KEY_GEN_MECHANISM:  "CKA_KEY_GEN_MECHANISM",
	pkcs11.CKA_ALLOWED_MECHANISMS: "CKA_ALLOWED_MECHANISMS",
}

// ObjectClassName returns the CKO_* name, or the numeric form for
// unknown codes.
func ObjectClassName(class uint) string {
	if name, ok := ObjectClassNames[class]; ok {
		return name
	}
	return fmt.Sprintf("0x%X", class)
}

// ObjectClassByName resolves a CKO_* name, or a decimal/hex code, to
// an object class.
func ObjectClassByName(s string) (uint, error) {
	for code, name := range ObjectClassNames {
		if name == s {
			return code, nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, errors.Errorf("unknown object class: %q", s)
	}
	return uint(v), nil
}

// KeyTypeName returns the CKK_* name, or the numeric form for unknown
// codes.
func KeyTypeName(kt uint) string {
	if name, ok := KeyTypeNames[kt]; ok {
		return name
	}
	return fmt.Sprintf("unknown key type: 0x%X", kt)
}

// CertTypeName returns the certificate type name, or the numeric form
// for unknown codes.
func CertTypeName(ct uint) string {
	if name, ok := CertTypeNames[ct]; ok {
		return name
	}
	return fmt.Sprintf("unknown certificate type: 0x%X", ct)
}

// MechanismName returns the CKM_* name, or the numeric form for
// unknown codes.
func MechanismName(mech uint) string {
	if name, ok := MechanismNames[mech]; ok {
		return name
	}
	return fmt.Sprintf("0x%X", mech)
}

// MechanismByName resolves a CKM_* name, or a decimal/hex code, to a
// mechanism type.
func MechanismByName(s string) (uint, error) {
	for code, name := range MechanismNames {
		if name == s {
			return code, nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, errors.Errorf("unknown mechanism: %q", s)
	}
	return uint(v), nil
}

// AttributeName returns the CKA_* name, or the numeric form for
// unknown codes.
func AttributeName(attr uint) string {
	if name, ok := AttributeNames[attr]; ok {
		return name
	}
	return fmt.Sprintf("0x%X", attr)
}
