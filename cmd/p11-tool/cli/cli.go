package cli

import (
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/p11tool/p11"
	"github.com/effective-security/p11tool/pinentry"
	"github.com/effective-security/p11tool/x/ctl"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/p11tool", "cli")

// inmemScheme selects the built-in in-memory token module.
const inmemScheme = "inmem:"

// Cli provides CLI context to run commands
type Cli struct {
	Cfg      string `help:"Location of token config file, or inmem: for the built-in module" required:""`
	Debug    bool   `short:"D" help:"Enable debug mode"`
	LogLevel string `short:"l" help:"Set the logging level (debug|info|warn|error)" default:"error"`

	// Stdin is the source to read from, typically set to os.Stdin
	stdin io.Reader
	// Output is the destination for all output from the command, typically set to os.Stdout
	output io.Writer
	// ErrOutput is the destinaton for errors.
	// If not set, errors will be written to os.StdError
	errOutput io.Writer

	provider *p11.Provider
	tokenCfg p11.TokenConfig
}

// Reader is the source to read from, typically set to os.Stdin
func (c *Cli) Reader() io.Reader {
	if c.stdin != nil {
		return c.stdin
	}
	return os.Stdin
}

// WithReader allows to specify a custom reader
func (c *Cli) WithReader(reader io.Reader) *Cli {
	c.stdin = reader
	return c
}

// Writer returns a writer for control output
func (c *Cli) Writer() io.Writer {
	if c.output != nil {
		return c.output
	}
	return os.Stdout
}

// WithWriter allows to specify a custom writer
func (c *Cli) WithWriter(out io.Writer) *Cli {
	c.output = out
	return c
}

// ErrWriter returns a writer for control output
func (c *Cli) ErrWriter() io.Writer {
	if c.errOutput != nil {
		return c.errOutput
	}
	return os.Stderr
}

// WithErrWriter allows to specify a custom error writer
func (c *Cli) WithErrWriter(out io.Writer) *Cli {
	c.errOutput = out
	return c
}

// AfterApply hook loads config
func (c *Cli) AfterApply(app *kong.Kong, vars kong.Vars) error {
	if c.Debug {
		xlog.SetGlobalLogLevel(xlog.DEBUG)
	} else {
		val := strings.TrimLeft(c.LogLevel, "=")
		l, err := xlog.ParseLevel(strings.ToUpper(val))
		if err != nil {
			return errors.WithStack(err)
		}
		xlog.SetGlobalLogLevel(l)
	}

	return nil
}

// WriteJSON prints response to out
func (c *Cli) WriteJSON(value interface{}) error {
	return ctl.WriteJSON(c.Writer(), value)
}

// WithProvider sets a pre-loaded provider, used by tests.
func (c *Cli) WithProvider(p *p11.Provider, cfg p11.TokenConfig) *Cli {
	c.provider = p
	c.tokenCfg = cfg
	return c
}

// Provider loads the token provider from the configuration. The load
// happens at most once; a failure is fatal to the run.
func (c *Cli) Provider() (*p11.Provider, error) {
	if c.provider != nil {
		return c.provider, nil
	}
	if c.Cfg == "" {
		return nil, errors.New("use --cfg flag to specify the token configuration")
	}

	if c.Cfg == inmemScheme || strings.HasPrefix(c.Cfg, inmemScheme) {
		mod, err := p11.NewSampleModule()
		if err != nil {
			return nil, err
		}
		c.provider = p11.NewProvider(mod)
		return c.provider, nil
	}

	if err := ctl.FileExists(c.Cfg); err != nil {
		return nil, errors.WithMessagef(err, "unable to load configuration %q", c.Cfg)
	}
	cfg, err := p11.LoadTokenConfig(c.Cfg)
	if err != nil {
		return nil, errors.WithMessagef(err, "unable to load configuration %q", c.Cfg)
	}
	prov, err := p11.Open(cfg.Path())
	if err != nil {
		return nil, err
	}
	c.tokenCfg = cfg
	c.provider = prov
	return c.provider, nil
}

// TokenCfg returns the loaded token configuration, which may be nil
// for the in-memory module.
func (c *Cli) TokenCfg() p11.TokenConfig {
	return c.tokenCfg
}

// Close releases the provider, best-effort.
func (c *Cli) Close() {
	if c.provider != nil {
		c.provider.Close()
	}
}

// SessionFlags are the flags shared by commands that open a token
// session.
type SessionFlags struct {
	Slot         *uint  `help:"slot to use (default: first listed slot)"`
	Pin          string `help:"PIN to log into the token; prefix with file: to load from a file; prompted when empty"`
	NoLogin      bool   `short:"L" help:"do not log into the token"`
	AllowNoToken *bool  `short:"T" help:"allow the use of slots without tokens"`
}

// inspector builds the session workflow from common flags and the
// loaded configuration.
func (c *Cli) inspector(flags *SessionFlags) (*p11.Inspector, error) {
	prov, err := c.Provider()
	if err != nil {
		return nil, err
	}

	ins := &p11.Inspector{
		Module:       prov,
		Out:          c.Writer(),
		NoLogin:      flags.NoLogin,
		RequireToken: true,
		Slot:         flags.Slot,
	}

	pin := flags.Pin
	if c.tokenCfg != nil {
		if pin == "" {
			pin = c.tokenCfg.Pin()
		}
		if ins.Slot == nil {
			ins.Slot = c.tokenCfg.Slot()
		}
		ins.TokenLabel = c.tokenCfg.TokenLabel()
		ins.RequireToken = c.tokenCfg.RequireToken()
	}
	if flags.AllowNoToken != nil {
		ins.RequireToken = !*flags.AllowNoToken
	}
	ins.Pin = c.pinSource(pin)

	return ins, nil
}

func (c *Cli) pinSource(pin string) pinentry.Source {
	switch {
	case strings.HasPrefix(pin, "file:"):
		return pinentry.File(strings.TrimPrefix(pin, "file:"))
	case pin != "":
		return pinentry.Static(pin)
	default:
		return &pinentry.Prompt{In: c.Reader(), Out: c.ErrWriter()}
	}
}
