package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// GlowFS is the filesystem config is read from. Tests swap in a memory
// backed one with a fixed home directory.
type GlowFS interface {
	afero.Fs
	Abs(string) (string, error)
	HomeDir() (string, error)
}

type glowOSFS struct {
	afero.Fs
}

func NewGlowOSFS() GlowFS {
	return &glowOSFS{
		afero.NewOsFs(),
	}
}

func (g *glowOSFS) Abs(path string) (string, error) {
	return filepath.Abs(path)
}

func (g *glowOSFS) HomeDir() (string, error) {
	return os.UserHomeDir()
}

type glowMemFS struct {
	afero.Fs
	cwd  string
	home string
}

// NewGlowMemFS returns an in-memory filesystem whose working directory is
// cwd and whose home directory is home.
func NewGlowMemFS(cwd, home string) GlowFS {
	return &glowMemFS{
		Fs:   afero.NewMemMapFs(),
		cwd:  cwd,
		home: home,
	}
}

func (g *glowMemFS) Abs(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	return filepath.Join(g.cwd, path), nil
}

func (g *glowMemFS) HomeDir() (string, error) {
	return g.home, nil
}
