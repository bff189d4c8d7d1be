// Copyright (c) 2019-2020 The bauthsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// btlc is a small front door over the btl compiler and the bchscript
// disassembler: it compiles template scripts to hex bytecode and renders hex
// bytecode as one-line disassembly.
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/btcsuite/btclog"
	flags "github.com/jessevdk/go-flags"
	"github.com/jrick/logrotate/rotator"

	"github.com/bauthsuite/bauth/bchscript"
	"github.com/bauthsuite/bauth/btl"
)

type config struct {
	Compile    string `short:"c" long:"compile" description:"Compile the template script in the given file and print its bytecode as hex"`
	Disasm     string `short:"d" long:"disasm" description:"Disassemble the given hex bytecode"`
	Set        string `short:"s" long:"set" default:"BCH_2019_11_STRICT" description:"Instruction set variant used for compile-time evaluations"`
	DebugLevel string `long:"debuglevel" default:"info" description:"Logging level {trace, debug, info, warn, error, critical}"`
	LogFile    string `long:"logfile" description:"Also write logs to the given file, rotated at 10 MiB"`
}

// logWriter mirrors log output to stdout and, when configured, the rotating
// log file.
type logWriter struct {
	rotator *rotator.Rotator
}

func (w logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if w.rotator != nil {
		w.rotator.Write(p)
	}
	return len(p), nil
}

// setupLoggers wires the package loggers of the libraries this tool drives.
func setupLoggers(cfg *config) (io.Closer, error) {
	writer := logWriter{}
	if cfg.LogFile != "" {
		r, err := rotator.New(cfg.LogFile, 10*1024, false, 3)
		if err != nil {
			return nil, fmt.Errorf("failed to create log rotator: %v",
				err)
		}
		writer.rotator = r
	}

	level, ok := btclog.LevelFromString(cfg.DebugLevel)
	if !ok {
		return nil, fmt.Errorf("invalid debug level %q", cfg.DebugLevel)
	}

	backend := btclog.NewBackend(writer)

	vmLog := backend.Logger("BCHS")
	vmLog.SetLevel(level)
	bchscript.UseLogger(vmLog)

	compilerLog := backend.Logger("BTL")
	compilerLog.SetLevel(level)
	btl.UseLogger(compilerLog)

	if writer.rotator == nil {
		return nil, nil
	}
	return writer.rotator, nil
}

func run() error {
	cfg := &config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok &&
			flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	closer, err := setupLoggers(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	is, err := bchscript.InstructionSetByName(cfg.Set)
	if err != nil {
		return err
	}

	switch {
	case cfg.Compile != "":
		return compileFile(cfg.Compile, is)
	case cfg.Disasm != "":
		return disasmHex(cfg.Disasm)
	default:
		parser.WriteHelp(os.Stderr)
		return fmt.Errorf("one of --compile or --disasm is required")
	}
}

// compileFile compiles the template source in the passed file and prints the
// resulting bytecode as hex on stdout.
func compileFile(path string, is bchscript.InstructionSet) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	env := btl.NewEnvironment(nil, nil, is)
	result := btl.CompileText(string(source), env, nil)
	if !result.Success {
		var sb strings.Builder
		for _, cerr := range result.Errors {
			fmt.Fprintf(&sb, "  %v\n", cerr)
		}
		return fmt.Errorf("compilation of %s failed:\n%s", path,
			sb.String())
	}

	fmt.Println(hex.EncodeToString(result.Bytecode))
	return nil
}

// disasmHex renders the passed hex bytecode as a one-line disassembly on
// stdout.
func disasmHex(encoded string) error {
	script, err := hex.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("invalid hex bytecode: %v", err)
	}

	disasm, err := bchscript.DisasmString(script)
	if err != nil {
		// Render the valid prefix alongside the parse failure.
		fmt.Println(disasm)
		return err
	}
	fmt.Println(disasm)
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
