package p11

import (
	"github.com/cockroachdb/errors"
	"github.com/miekg/pkcs11"
)

// findBatchSize is the number of object handles requested per
// FindObjects call.
const findBatchSize = 10

// ErrStopEnumeration stops ForEachObject early without reporting an
// error to the caller.
var ErrStopEnumeration = errors.New("stop enumeration")

// ForEachObject enumerates the objects matching filter and invokes fn
// for each handle. The find protocol is strictly init, repeated
// next-batch until an empty batch, then final; FindObjectsFinal runs
// exactly once per successful init, including when a batch call or the
// callback fails. The sequence is not restartable and its order is
// provider-defined.
func ForEachObject(m Module, sh pkcs11.SessionHandle, filter []*pkcs11.Attribute, fn func(obj pkcs11.ObjectHandle) error) error {
	if err := m.FindObjectsInit(sh, filter); err != nil {
		return errors.WithMessage(err, "FindObjectsInit")
	}
	defer func() {
		// release the provider's enumeration state even on error paths
		if err := m.FindObjectsFinal(sh); err != nil {
			logger.Errorf("reason=FindObjectsFinal, err=[%v]", err)
		}
	}()

	for {
		handles, _, err := m.FindObjects(sh, findBatchSize)
		if err != nil {
			return errors.WithMessage(err, "FindObjects")
		}
		if len(handles) == 0 {
			return nil
		}
		for _, obj := range handles {
			if err := fn(obj); err != nil {
				if errors.Is(err, ErrStopEnumeration) {
					return nil
				}
				return err
			}
		}
	}
}

// FindObjects collects all object handles matching filter.
func FindObjects(m Module, sh pkcs11.SessionHandle, filter []*pkcs11.Attribute) ([]pkcs11.ObjectHandle, error) {
	var handles []pkcs11.ObjectHandle
	err := ForEachObject(m, sh, filter, func(obj pkcs11.ObjectHandle) error {
		handles = append(handles, obj)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return handles, nil
}

// ClassFilter builds a find filter selecting a single object class.
func ClassFilter(class uint) []*pkcs11.Attribute {
	return []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, class),
	}
}
