//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

func Build() error {
	mg.Deps(BuildPhaseMeasurement)
	mg.Deps(BuildDumpData)
	fmt.Println("Compilation finished")
	return nil
}

// The HDF5 writer needs cgo, CGO_CFLAGS and CGO_LDFLAGS point to the library.
func buildExecutable(name string) error {
	fmt.Printf("Building %s executable...\n", name)
	ldflags := os.Getenv("CGO_LDFLAGS")
	cflags := os.Getenv("CGO_CFLAGS")
	cmd := exec.Command("go", "build", "-o", "./bin/"+name, "./"+name)
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=1",
		fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
		fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func BuildPhaseMeasurement() error {
	return buildExecutable("phaseMeasurement")
}

func BuildDumpData() error {
	return buildExecutable("dumpData")
}

func Test() error {
	cmd := exec.Command("go", "test", "./...")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
