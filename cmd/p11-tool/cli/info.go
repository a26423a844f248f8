package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/p11tool/p11"
)

// InfoCmd prints provider library metadata
type InfoCmd struct {
	JSON bool `help:"print as JSON"`
}

// Run the command
func (a *InfoCmd) Run(ctx *Cli) error {
	prov, err := ctx.Provider()
	if err != nil {
		return err
	}
	info, err := prov.GetInfo()
	if err != nil {
		return errors.WithMessage(err, "unable to get library info")
	}

	if a.JSON {
		return ctx.WriteJSON(&libraryInfo{
			CryptokiVersion: fmt.Sprintf("%d.%d", info.CryptokiVersion.Major, info.CryptokiVersion.Minor),
			Manufacturer:    p11.TrimPadding([]byte(info.ManufacturerID)),
			Description:     p11.TrimPadding([]byte(info.LibraryDescription)),
			LibraryVersion:  fmt.Sprintf("%d.%d", info.LibraryVersion.Major, info.LibraryVersion.Minor),
			Flags:           info.Flags,
		})
	}

	out := ctx.Writer()
	fmt.Fprintf(out, "PKCS#11 Version: %d.%d\n", info.CryptokiVersion.Major, info.CryptokiVersion.Minor)
	fmt.Fprintf(out, "Lib manufacturer: %s\n", p11.TrimPadding([]byte(info.ManufacturerID)))
	fmt.Fprintf(out, "Lib description: %s\n", p11.TrimPadding([]byte(info.LibraryDescription)))
	fmt.Fprintf(out, "Lib version: %d.%d\n", info.LibraryVersion.Major, info.LibraryVersion.Minor)
	fmt.Fprintf(out, "Lib flags: %d\n", info.Flags)
	return nil
}

type libraryInfo struct {
	CryptokiVersion string `json:"cryptoki_version"`
	Manufacturer    string `json:"manufacturer"`
	Description     string `json:"description"`
	LibraryVersion  string `json:"library_version"`
	Flags           uint   `json:"flags"`
}
