//go:build mage

// Package main contains Mage build targets for paper-harvester developer tooling.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir  = "bin"
	binName = "paper-harvester"
	cmdPkg  = "./cmd/paper-harvester"

	// defaultPDFDir is used by Init and the pipeline targets when
	// PDF_FOLDER_PATH is unset.
	defaultPDFDir = "pdfs"
)

// Init creates the PDF directory and the .secrets directory.
func Init() error {
	for _, dir := range []string{pdfDir(), ".secrets"} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	ldflags := "-X main.version=" + gitVersion()
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Crawl builds the CLI and runs the crawl stage.
func Crawl() error {
	mg.Deps(Build, Init)
	return sh.RunWithV(pipelineEnv(), filepath.Join(binDir, binName), "crawl")
}

// Classify builds the CLI and runs the classification sweep.
func Classify() error {
	mg.Deps(Build)
	return sh.RunWithV(pipelineEnv(), filepath.Join(binDir, binName), "classify")
}

// Pipeline runs the crawl followed by the classification sweep.
func Pipeline() {
	mg.SerialDeps(Crawl, Classify)
}

// Stats prints project metrics: Go production and test lines.
func Stats() error {
	prodLines, testLines, err := countGoLines(".")
	if err != nil {
		return err
	}
	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	return nil
}

func pdfDir() string {
	if dir := os.Getenv("PDF_FOLDER_PATH"); dir != "" {
		return dir
	}
	return defaultPDFDir
}

func pipelineEnv() map[string]string {
	return map[string]string{"PDF_FOLDER_PATH": pdfDir()}
}

// gitVersion describes HEAD, or "dev" outside a git checkout.
func gitVersion() string {
	v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || v == "" {
		return "dev"
	}
	return v
}

// countGoLines counts non-blank lines in production and test Go files
// under root, skipping the examples and hidden directories.
func countGoLines(root string) (prod, test int, err error) {
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(name) != ".go" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		n := 0
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			if strings.TrimSpace(sc.Text()) != "" {
				n++
			}
		}
		if strings.HasSuffix(name, "_test.go") {
			test += n
		} else {
			prod += n
		}
		return nil
	})
	return prod, test, err
}
