package p11

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// TokenConfig holds PKCS#11 provider configuration.
//
// A slot may be selected by number or by token label; when neither is
// set the first slot from the provider's list is used. Supply this to
// Inspector or load it with LoadTokenConfig.
type TokenConfig interface {
	// Full path to PKCS#11 library
	Path() string

	// Slot number to use; nil selects the first listed slot
	Slot() *uint

	// Token label
	TokenLabel() string

	// Pin is a secret to access the token.
	// If it's prefixed with `file:`, then it will be loaded from the file.
	Pin() string

	// RequireToken limits slot listing to slots with a token present
	RequireToken() bool
}

type tokenConfig struct {
	Dir     string `json:"Path"         yaml:"path"`
	SlotNum *uint  `json:"Slot"         yaml:"slot"`
	Label   string `json:"TokenLabel"   yaml:"token_label"`
	Pwd     string `json:"Pin"          yaml:"pin"`
	NoToken bool   `json:"AllowNoToken" yaml:"allow_no_token"`
}

// Path is the full path to PKCS#11 library
func (c *tokenConfig) Path() string {
	return c.Dir
}

// Slot number to use
func (c *tokenConfig) Slot() *uint {
	return c.SlotNum
}

// TokenLabel is the token label
func (c *tokenConfig) TokenLabel() string {
	return c.Label
}

// Pin is a secret to access the token
func (c *tokenConfig) Pin() string {
	return c.Pwd
}

// RequireToken limits slot listing to slots with a token present
func (c *tokenConfig) RequireToken() bool {
	return !c.NoToken
}

// LoadTokenConfig loads PKCS#11 token configuration
func LoadTokenConfig(filename string) (TokenConfig, error) {
	cfr, err := os.Open(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer cfr.Close()
	tokenConfig := new(tokenConfig)

	if strings.HasSuffix(filename, ".json") {
		err = json.NewDecoder(cfr).Decode(tokenConfig)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to decode file: %s", filename)
		}
	} else {
		err = yaml.NewDecoder(cfr).Decode(tokenConfig)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to decode file: %s", filename)
		}
	}

	pin := tokenConfig.Pin()
	if strings.HasPrefix(pin, "file:") {
		pinfile := pin[5:]

		// try to resolve pin file
		cwd, _ := os.Getwd()
		folders := []string{
			"",
			cwd,
			filepath.Dir(filename),
		}

		for _, folder := range folders {
			if resolved, err := resolve(pinfile, folder); err == nil {
				pinfile = resolved
				break
			}
			logger.Warningf("reason=resolve, pinfile=%q, basedir=%q", pinfile, folder)
		}

		pb, err := os.ReadFile(pinfile)
		if err != nil {
			return nil, errors.WithMessagef(err, "unable to load PIN for configuration: %s", filename)
		}
		tokenConfig.Pwd = strings.TrimSpace(string(pb))
	}

	return tokenConfig, nil
}

// resolve returns absolute file name relative to baseDir,
// or NewNotFound error.
func resolve(file string, baseDir string) (resolved string, err error) {
	if file == "" {
		return file, nil
	}
	if filepath.IsAbs(file) {
		resolved = file
	} else if baseDir != "" {
		resolved = filepath.Join(baseDir, file)
	}
	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		return resolved, errors.WithMessagef(err, "not found: %v", resolved)
	}
	return resolved, nil
}
