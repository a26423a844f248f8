package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/p11tool/p11"
	"github.com/miekg/pkcs11"
)

// ObjectsCmd dumps token objects with their class-specific attributes
type ObjectsCmd struct {
	SessionFlags

	Class string `help:"object class filter (CKO_* name or code)"`
	Out   string `help:"write attribute values to files named by this template; %o expands to the object index, %a to the attribute name, %s to the slot"`
}

// Run the command
func (a *ObjectsCmd) Run(ctx *Cli) error {
	var filter []*pkcs11.Attribute
	if a.Class != "" {
		class, err := p11.ObjectClassByName(a.Class)
		if err != nil {
			return err
		}
		filter = p11.ClassFilter(class)
	}

	ins, sh, slotID, closer, err := ctx.session(&a.SessionFlags)
	if err != nil {
		return err
	}
	defer closer()

	if a.Out != "" {
		return a.dumpToFiles(ctx, ins, sh, slotID, filter)
	}
	if filter != nil {
		return ins.DumpObjects(sh, filter)
	}
	return ins.DumpAllClasses(sh)
}

// dumpToFiles writes each object's raw attribute values to files named
// by the template. Unavailable attributes are skipped; a write failure
// aborts the walk.
func (a *ObjectsCmd) dumpToFiles(ctx *Cli, ins *p11.Inspector, sh pkcs11.SessionHandle, slotID uint, filter []*pkcs11.Attribute) error {
	out := ctx.Writer()
	index := 0
	return p11.ForEachObject(ins.Module, sh, filter, func(obj pkcs11.ObjectHandle) error {
		class, err := p11.ReadULongAttr(ins.Module, sh, obj, pkcs11.CKA_CLASS)
		if err != nil {
			fmt.Fprintf(out, "Object[%d]: unable to read class (%v)\n", index, err)
			index++
			return nil
		}
		for _, handler := range p11.HandlersForClass(class) {
			value, err := p11.ReadAttr(ins.Module, sh, obj, handler.Type)
			if err != nil {
				if errors.Is(err, p11.ErrUnavailable) {
					continue
				}
				fmt.Fprintf(out, "Object[%d] %s: %v\n", index, handler.Label, err)
				continue
			}
			name := expandTemplate(a.Out, index, p11.AttributeName(handler.Type), slotID)
			if err := os.WriteFile(name, value, 0644); err != nil {
				return errors.WithMessagef(err, "unable to write %q", name)
			}
			fmt.Fprintf(out, "Object[%d] %s: wrote %d bytes to %s\n", index, handler.Label, len(value), name)
		}
		index++
		return nil
	})
}

func expandTemplate(t string, index int, attr string, slotID uint) string {
	r := strings.NewReplacer(
		"%o", strconv.Itoa(index),
		"%a", attr,
		"%s", strconv.FormatUint(uint64(slotID), 10),
	)
	return r.Replace(t)
}
