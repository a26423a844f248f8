package cli

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/p11tool/p11"
	"github.com/miekg/pkcs11"
)

// SlotsCmd lists slots and their tokens
type SlotsCmd struct {
	Mechanisms   bool `help:"include the mechanism list for each token"`
	AllowNoToken bool `short:"T" help:"allow the use of slots without tokens"`
}

// Run the command
func (a *SlotsCmd) Run(ctx *Cli) error {
	prov, err := ctx.Provider()
	if err != nil {
		return err
	}
	slots, err := prov.GetSlotList(!a.AllowNoToken)
	if err != nil {
		return errors.WithMessage(err, "GetSlotList")
	}
	if len(slots) == 0 {
		return errors.New("no slots found")
	}

	out := ctx.Writer()
	rows := make([][]string, 0, len(slots))
	for _, slotID := range slots {
		row := []string{strconv.FormatUint(uint64(slotID), 10), "", "", "", ""}
		if si, err := prov.GetSlotInfo(slotID); err == nil {
			row[1] = p11.TrimPadding([]byte(si.SlotDescription))
		}
		if ti, err := prov.GetTokenInfo(slotID); err == nil {
			row[2] = p11.TrimPadding([]byte(ti.Label))
			row[3] = p11.TrimPadding([]byte(ti.SerialNumber))
			row[4] = p11.FlagNames(p11.TokenFlagNames, ti.Flags)
		}
		rows = append(rows, row)
	}
	printTable(out, []string{"Slot", "Description", "Token", "Serial", "Flags"}, rows, 1)

	if !a.Mechanisms {
		return nil
	}

	for _, slotID := range slots {
		mechs, err := prov.GetMechanismList(slotID)
		if err != nil {
			fmt.Fprintf(out, "slot %d: GetMechanismList failed (%v)\n", slotID, err)
			continue
		}
		fmt.Fprintf(out, "Slot %d mechanisms:\n", slotID)
		rows = rows[:0]
		for _, mech := range mechs {
			row := []string{p11.MechanismName(mech.Mechanism), "", "", ""}
			mi, err := prov.GetMechanismInfo(slotID, []*pkcs11.Mechanism{mech})
			if err == nil {
				row[1] = strconv.FormatUint(uint64(mi.MinKeySize), 10)
				row[2] = strconv.FormatUint(uint64(mi.MaxKeySize), 10)
				row[3] = p11.FlagNames(p11.MechanismFlagNames, mi.Flags)
			}
			rows = append(rows, row)
		}
		printTable(out, []string{"Mechanism", "Min", "Max", "Flags"}, rows, 2, 3)
	}
	return nil
}
