package main

import (
	_ "embed"
	"io"
	"os"
	"text/template"
)

//go:embed glowchain.service
var glowchainServiceEmbed string

type GlowchainServiceParams struct {
	BinaryPath string
	ConfigPath string
}

// SystemdServiceFile renders a unit that runs the current binary as root,
// which the PWM registers in /dev/mem require.
func SystemdServiceFile(w io.Writer, configPath string) error {
	tmpl, err := template.New("glowchain.service").Parse(glowchainServiceEmbed)
	if err != nil {
		return err
	}

	path, err := os.Executable()
	if err != nil {
		return err
	}

	params := GlowchainServiceParams{
		BinaryPath: path,
		ConfigPath: configPath,
	}

	return tmpl.Execute(w, params)
}
