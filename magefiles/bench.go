//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Bench builds the binary and benchmarks $PDF with $ENGINE (default
// pdftext). $LOOPS and $PARALLEL are passed through when set.
func Bench() error {
	mg.Deps(Build)

	pdf := os.Getenv("PDF")
	if pdf == "" {
		return fmt.Errorf("set PDF to the document to benchmark")
	}
	engine := os.Getenv("ENGINE")
	if engine == "" {
		engine = "pdftext"
	}

	args := []string{"bench", pdf, "--engine", engine}
	if loops := os.Getenv("LOOPS"); loops != "" {
		args = append(args, "--loops", loops)
	}
	if parallel := os.Getenv("PARALLEL"); parallel != "" {
		args = append(args, "--parallel", parallel)
	}
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Engines lists the engines compiled into the binary.
func Engines() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "engines")
}
