package p11

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/miekg/pkcs11"
)

// ErrUnavailable is returned when the provider reports the
// "information unavailable" sentinel for an attribute.
var ErrUnavailable = errors.New("information unavailable")

// ulongSize is the width of CK_ULONG on the LP64 platforms this tool
// targets. Narrower widths from other providers are still accepted by
// bytesToUlong.
const ulongSize = 8

// AttrHandler associates an attribute type with a printed label and a
// decoder for its raw value. A fixed table of handlers per object
// class drives batched retrieval.
type AttrHandler struct {
	Type  uint
	Label string
	Dump  func(value []byte) string
}

// Handler tables per object class of interest. Classes without a
// dedicated table get the minimal one.
var (
	dataAttrs = []AttrHandler{
		{pkcs11.CKA_APPLICATION, "Application Description", DumpString},
		{pkcs11.CKA_OBJECT_ID, "Object ID", DumpHex},
		{pkcs11.CKA_VALUE, "Object value", DumpLength},
	}
	certAttrs = []AttrHandler{
		{pkcs11.CKA_CERTIFICATE_TYPE, "Certificate Type", DumpCertType},
		{pkcs11.CKA_ID, "Key Identifier", DumpHex},
		{pkcs11.CKA_VALUE, "Object value", DumpLength},
		{pkcs11.CKA_SUBJECT, "Subject name", DumpHex},
		{pkcs11.CKA_ISSUER, "Certificate issuer", DumpHex},
	}
	keyAttrs = []AttrHandler{
		{pkcs11.CKA_ID, "Key Identifier", DumpHex},
		{pkcs11.CKA_KEY_TYPE, "Key type", DumpKeyType},
		{pkcs11.CKA_KEY_GEN_MECHANISM, "Key Generation Mechanism", DumpMechanism},
		{pkcs11.CKA_ALLOWED_MECHANISMS, "Allowed Mechanisms", DumpMechanismList},
		{pkcs11.CKA_SUBJECT, "Subject name", DumpHex},
	}
	minimalAttrs = []AttrHandler{
		{pkcs11.CKA_CLASS, "Object class", DumpClass},
	}
)

// classAttrHandler reads the object class first so the class-specific
// table can be selected.
var classAttrHandler = AttrHandler{pkcs11.CKA_CLASS, "Object class", DumpClass}

// HandlersForClass returns the attribute handler table for an object
// class. Unknown classes get the minimal table.
func HandlersForClass(class uint) []AttrHandler {
	switch class {
	case pkcs11.CKO_DATA:
		return dataAttrs
	case pkcs11.CKO_CERTIFICATE:
		return certAttrs
	case pkcs11.CKO_PUBLIC_KEY, pkcs11.CKO_PRIVATE_KEY:
		return keyAttrs
	default:
		return minimalAttrs
	}
}

// ReadAttr fetches a single raw attribute value. Retrieval follows the
// size-then-fill convention: the provider is first asked for the
// declared length with no buffer supplied, then a buffer of that
// length is filled; the binding issues both calls and surfaces the
// unavailable-length sentinel as a nil value.
func ReadAttr(m Module, sh pkcs11.SessionHandle, obj pkcs11.ObjectHandle, typ uint) ([]byte, error) {
	attrs, err := m.GetAttributeValue(sh, obj, []*pkcs11.Attribute{pkcs11.NewAttribute(typ, nil)})
	if err != nil {
		return nil, errors.WithMessagef(err, "GetAttributeValue %s", AttributeName(typ))
	}
	if len(attrs) != 1 || attrs[0].Value == nil {
		return nil, ErrUnavailable
	}
	return attrs[0].Value, nil
}

// ReadULongAttr fetches an attribute expected to carry a CK_ULONG.
func ReadULongAttr(m Module, sh pkcs11.SessionHandle, obj pkcs11.ObjectHandle, typ uint) (uint, error) {
	value, err := ReadAttr(m, sh, obj, typ)
	if err != nil {
		return 0, err
	}
	v, ok := bytesToUlong(value)
	if !ok {
		return 0, errors.Errorf("attribute %s: unexpected length %d", AttributeName(typ), len(value))
	}
	return v, nil
}

// DumpAttrs retrieves and prints each attribute from the handler
// table. Failures are per-attribute: a failed or unavailable attribute
// is reported and the remaining handlers still run. The first value of
// CK_ULONG shape is returned for class dispatch.
func DumpAttrs(m Module, sh pkcs11.SessionHandle, obj pkcs11.ObjectHandle, out io.Writer, handlers []AttrHandler) (uint, bool) {
	var (
		first     uint
		haveFirst bool
	)
	for _, h := range handlers {
		value, err := ReadAttr(m, sh, obj, h.Type)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				fmt.Fprintf(out, "%s: Information Unavailable\n", h.Label)
			} else {
				fmt.Fprintf(out, "%s: %v\n", h.Label, err)
			}
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", h.Label, h.Dump(value))

		if !haveFirst {
			if v, ok := bytesToUlong(value); ok {
				first = v
				haveFirst = true
			}
		}
	}
	return first, haveFirst
}

// DumpHex renders any buffer as hex. Always succeeds.
func DumpHex(value []byte) string {
	return hex.EncodeToString(value)
}

// DumpString renders a fixed-width provider string, trimming the
// NUL/space padding.
func DumpString(value []byte) string {
	return TrimPadding(value)
}

// DumpLength reports only the byte count, for large opaque values.
func DumpLength(value []byte) string {
	return fmt.Sprintf("%d bytes", len(value))
}

// DumpClass renders a CK_OBJECT_CLASS value.
func DumpClass(value []byte) string {
	v, ok := bytesToUlong(value)
	if !ok {
		return lengthMismatch(len(value))
	}
	return ObjectClassName(v)
}

// DumpCertType renders a CK_CERTIFICATE_TYPE value.
func DumpCertType(value []byte) string {
	v, ok := bytesToUlong(value)
	if !ok {
		return lengthMismatch(len(value))
	}
	return CertTypeName(v)
}

// DumpKeyType renders a CK_KEY_TYPE value.
func DumpKeyType(value []byte) string {
	v, ok := bytesToUlong(value)
	if !ok {
		return lengthMismatch(len(value))
	}
	return KeyTypeName(v)
}

// DumpMechanism renders a single CK_MECHANISM_TYPE value.
func DumpMechanism(value []byte) string {
	v, ok := bytesToUlong(value)
	if !ok {
		return lengthMismatch(len(value))
	}
	return MechanismName(v)
}

// DumpMechanismList renders a CK_MECHANISM_TYPE array. The buffer must
// be a multiple of the mechanism code width; an empty list renders as
// nothing.
func DumpMechanismList(value []byte) string {
	if len(value)%ulongSize != 0 {
		return fmt.Sprintf("unexpected length (got %d, expected a multiple of %d)", len(value), ulongSize)
	}
	names := make([]string, 0, len(value)/ulongSize)
	for off := 0; off < len(value); off += ulongSize {
		v, _ := bytesToUlong(value[off : off+ulongSize])
		names = append(names, MechanismName(v))
	}
	return strings.Join(names, ", ")
}

// TrimPadding removes trailing NUL and space padding from a
// fixed-width provider field.
func TrimPadding(value []byte) string {
	return strings.TrimRight(string(value), "\x00 ")
}

func lengthMismatch(got int) string {
	return fmt.Sprintf("unexpected length (got %d, expected %d)", got, ulongSize)
}

// bytesToUlong decodes a host-order CK_ULONG. The common widths are
// accepted so 32-bit providers still decode.
func bytesToUlong(b []byte) (uint, bool) {
	switch len(b) {
	case 1:
		return uint(b[0]), true
	case 2:
		return uint(binary.NativeEndian.Uint16(b)), true
	case 4:
		return uint(binary.NativeEndian.Uint32(b)), true
	case 8:
		return uint(binary.NativeEndian.Uint64(b)), true
	default:
		return 0, false
	}
}

// ulongBytes encodes v as a host-order CK_ULONG.
func ulongBytes(v uint) []byte {
	b := make([]byte, ulongSize)
	binary.NativeEndian.PutUint64(b, uint64(v))
	return b
}
