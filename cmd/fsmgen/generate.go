package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nihei9/fsmgen/codegen"
	"github.com/nihei9/fsmgen/log"
	"github.com/spf13/cobra"
)

var generateFlags = struct {
	gen    *genFlags
	debug  *bool
	output *string
	jobs   *int
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "generate [machine...]",
		Short: "Generate the tables and the execution loop of a scanner",
		Long: `generate takes a reduced state machine and writes the data, init and exec fragments of a scanner for the host language.
When the machine is read from a file and no output path is given, the output file name is derived from the machine file name.
Several machine files are generated independently and in parallel; each is written to its own derived file name.`,
		Example: `  Generate a C scanner in the flat style:
    fsmgen generate lexer.json --host c --style -F1
  Read from stdin and write to stdout:
    cat lexer.yaml | fsmgen generate --format yaml --host go
  Generate two scanners with at most two jobs:
    fsmgen generate lexer.json numbers.json --jobs 2`,
		Args: cobra.ArbitraryArgs,
		RunE: runGenerate,
	}
	generateFlags.gen = addGenFlags(cmd)
	generateFlags.debug = cmd.Flags().BoolP("debug", "d", false, "enable logging")
	generateFlags.output = cmd.Flags().StringP("output", "o", "", "output file path; - is stdout")
	generateFlags.jobs = cmd.Flags().IntP("jobs", "j", 0, "number of machines generated at once (default: the number of CPUs)")
	rootCmd.AddCommand(cmd)
}

func runGenerate(cmd *cobra.Command, args []string) (retErr error) {
	if len(args) > 1 && *generateFlags.output != "" {
		return fmt.Errorf("--output cannot be used with more than one machine")
	}

	conf, err := loadConfig(*rootFlags.config)
	if err != nil {
		return err
	}
	generateFlags.gen.merge(cmd, conf)
	tgt, err := conf.resolve()
	if err != nil {
		return err
	}

	if *generateFlags.debug {
		fileName := "fsmgen-generate.log"
		f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("Cannot open the log file %s: %w", fileName, err)
		}
		defer f.Close()
		fmt.Fprintf(f, `fsmgen generate starts.
Date time: %v
---
`, time.Now().Format(time.RFC3339))
		defer func() {
			fmt.Fprintf(f, "---\n")
			if retErr != nil {
				fmt.Fprintf(f, "fsmgen generate failed: %v\n", retErr)
			} else {
				fmt.Fprintf(f, "fsmgen generate succeeded.\n")
			}
		}()

		logger, err := log.NewLoggerWithLevel(f, conf.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()
		tgt.opts = append(tgt.opts, codegen.WithLogger(logger))
	}

	if len(args) == 0 {
		m, err := readMachine("", *generateFlags.gen.format)
		if err != nil {
			return fmt.Errorf("Cannot read a machine: %w", err)
		}
		out, err := codegen.Generate(m, tgt.host, tgt.style, tgt.opts...)
		if err != nil {
			return fmt.Errorf("Failed to generate a scanner: %w", err)
		}
		err = writeOutput(out, *generateFlags.output)
		if err != nil {
			return fmt.Errorf("Cannot write the scanner: %w", err)
		}
		return nil
	}

	units, err := generateUnits(context.Background(), args, tgt, *generateFlags.gen.format, *generateFlags.jobs)
	if err != nil {
		return err
	}
	for _, u := range units {
		outPath := *generateFlags.output
		if outPath == "" {
			outPath = u.out.FileName
		}
		err := writeOutput(u.out, outPath)
		if err != nil {
			return fmt.Errorf("Cannot write the scanner generated from %s: %w", u.path, err)
		}
	}
	return nil
}

func writeOutput(out *codegen.Output, path string) error {
	w := os.Stdout
	if path != "" && path != "-" {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("Cannot open the output file %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	_, err := out.WriteTo(w)
	return err
}
