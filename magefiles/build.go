//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Build targets for the journey editor.
//
//	mage build          Compile the journey binary to bin/
//	mage install        Install journey to GOPATH/bin
//	mage clean          Remove build artifacts
//	mage demo           Build a sample journey in a scratch workspace
//	mage lint           Run golangci-lint
//	mage vet            Run go vet
//	mage test:all       Run every test
//	mage test:unit      Run tests in short mode
//	mage test:race      Run tests with the race detector
//	mage test:cover     Write a coverage profile to bin/
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "journey"
	binaryDir  = "bin"
	cmdDir     = "./cmd/journey"
	demoDir    = "bin/demo"
)

// Build compiles the journey binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Demo builds a start -> split -> sms journey in bin/demo and prints its
// preview lines and report.
func Demo() error {
	mg.Deps(Build)
	if err := os.RemoveAll(demoDir); err != nil {
		return err
	}
	bin := filepath.Join(binaryDir, binaryName)
	journey := func(args ...string) error {
		return sh.RunV(bin, append([]string{"--config-dir", demoDir}, args...)...)
	}
	steps := [][]string{
		{"init"},
		{"node", "add", "start", "--id", "start"},
		{"configure", "start", "--set", "taskType=marketing"},
		{"node", "add", "audience-split", "--id", "split", "--y", "200"},
		{"edge", "add", "start", "split"},
		{"configure", "split", "--payload", `{"crowdLayers":[{"id":"vip","crowdName":"VIP"},{"id":"new","crowdName":"新客"}]}`},
		{"node", "add", "sms", "--id", "sms", "--x", "-150", "--y", "420"},
		{"drag", "split", "--branch", "vip", "--to", "-90,440"},
		{"preview", "list"},
		{"report"},
	}
	for _, step := range steps {
		if err := journey(step...); err != nil {
			return fmt.Errorf("journey %v: %w", step, err)
		}
	}
	return nil
}
