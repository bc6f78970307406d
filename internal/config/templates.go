package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const templateHeader = `# ttcp configuration.
# Keys left out keep their built-in defaults; command line flags override this file.
# role is "transmit" or "receive" and is normally chosen by the subcommand.

`

// Template renders opts in the file format Load reads.
func Template(opts Options) ([]byte, error) {
	raw := fileConfig{
		Node:             opts.Node,
		Role:             opts.Role,
		Host:             opts.Host,
		Bind:             opts.Bind,
		Port:             int64(opts.Port),
		Length:           int64(opts.Length),
		Number:           int64(opts.Number),
		NoDelay:          opts.NoDelay,
		Once:             opts.Once,
		ConnectAttempts:  opts.ConnectAttempts,
		ConnectTimeout:   opts.ConnectTimeout.String(),
		HandshakeTimeout: opts.HandshakeTimeout.String(),
		ReadTimeout:      opts.ReadTimeout.String(),
		WriteTimeout:     opts.WriteTimeout.String(),
		MaxPayload:       int64(opts.MaxPayload),
		AdminAddr:        opts.AdminAddr,
		CORSOrigins:      opts.CORSOrigins,
	}
	if raw.CORSOrigins == nil {
		raw.CORSOrigins = []string{}
	}

	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(raw); err != nil {
		return nil, fmt.Errorf("config render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTemplate writes Template(opts) to path, refusing to clobber unless overwrite is set.
func WriteTemplate(path string, opts Options, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	data, err := Template(opts)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
