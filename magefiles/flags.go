//go:build mage

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

// targetArgs are the arguments after the target name, e.g. the
// "--run TestSync --pkg ./pkg/crud" in "mage test:unit --run TestSync
// --pkg ./pkg/crud". Mage itself only takes positional arguments.
var targetArgs []string

func init() {
	os.Args, targetArgs = splitTarget(os.Args)
}

// splitTarget cuts args after the first non-flag argument, the target.
// Mage flags before it stay with mage. A "--" before any target leaves args
// alone.
func splitTarget(args []string) (mage, target []string) {
	for i := 1; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		if a != "" && a[0] != '-' {
			return args[:i+1], args[i+1:]
		}
	}
	return args, nil
}

// unitFlags are the options test:unit accepts.
type unitFlags struct {
	run string
	pkg string
}

func parseUnitFlags(args []string) (unitFlags, error) {
	var f unitFlags
	fs := flag.NewFlagSet("test:unit", flag.ContinueOnError)
	fs.StringVar(&f.run, "run", "", "only run tests matching this regexp")
	fs.StringVar(&f.pkg, "pkg", "./...", "package pattern, e.g. ./pkg/crud")
	err := fs.Parse(args)
	return f, err
}

// goTestArgs renders the flags as go test arguments.
func (f unitFlags) goTestArgs() []string {
	args := []string{"test", "-v"}
	if f.run != "" {
		args = append(args, "-run", f.run)
	}
	return append(args, f.pkg)
}

// mustParseUnitFlags exits on a bad flag. --help exits cleanly after the
// flag package prints usage.
func mustParseUnitFlags() unitFlags {
	f, err := parseUnitFlags(targetArgs)
	if err == nil {
		return f
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	fmt.Fprintf(os.Stderr, "test:unit: %v\n", err)
	os.Exit(1)
	return f
}
