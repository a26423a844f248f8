package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/effective-security/p11tool/cmd/p11-tool/cli"
	"github.com/effective-security/p11tool/internal/version"
	"github.com/effective-security/p11tool/x/ctl"
)

type app struct {
	cli.Cli

	Info    cli.InfoCmd    `cmd:"" help:"print provider library info"`
	Slots   cli.SlotsCmd   `cmd:"" help:"list slots and tokens"`
	Objects cli.ObjectsCmd `cmd:"" help:"dump token objects"`
	Sign    cli.SignCmd    `cmd:"" help:"sign a payload and self-verify"`
	Verify  cli.VerifyCmd  `cmd:"" help:"verify a detached signature"`
	Inspect cli.InspectCmd `cmd:"" help:"run the full token inspection flow"`

	Version ctl.VersionFlag `name:"version" help:"print version information and quit" hidden:""`
}

func main() {
	realMain(os.Args, os.Stdout, os.Stderr, os.Exit)
}

func realMain(args []string, out io.Writer, errout io.Writer, exit func(int)) {
	cl := app{
		Cli: cli.Cli{},
	}
	cl.Cli.WithErrWriter(errout).
		WithWriter(out)

	parser, err := kong.New(&cl,
		kong.Name("p11-tool"),
		kong.Description("CLI tool for PKCS#11 token introspection"),
		kong.Writers(out, errout),
		kong.Exit(exit),
		ctl.BoolPtrMapper,
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version.Current().String(),
		})
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args[1:])
	parser.FatalIfErrorf(err)

	if ctx != nil {
		if cl.Debug {
			// in DEBUG more print command line
			_, _ = fmt.Fprintf(ctx.Stdout, "#\n# %s\n#\n", strings.Join(args, " "))
		}
		err = ctx.Run(&cl.Cli)
		cl.Cli.Close()
		ctx.FatalIfErrorf(err)
	}
}
