package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/nihei9/fsmgen/codegen"
	"github.com/nihei9/fsmgen/driver"
	"github.com/nihei9/fsmgen/fsm"
	"github.com/spf13/cobra"
)

var runFlags = struct {
	gen          *genFlags
	input        *string
	output       *string
	conds        *[]string
	partial      *bool
	tables       *bool
	breakOnError *bool
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "run machine",
		Short: "Run a state machine over an input stream",
		Long: `run executes a state machine over an input stream and prints every action it runs as a JSON line, followed by the result.
By default the analyzed machine itself is executed. With --tables the tables generated in the selected style are executed instead.`,
		Example: `  cat input | fsmgen run lexer.json --cond in_comment
  fsmgen run lexer.json -i input --tables --style flat-exp`,
		Args: cobra.ExactArgs(1),
		RunE: runRun,
	}
	runFlags.gen = addGenFlags(cmd)
	runFlags.input = cmd.Flags().StringP("input", "i", "", "input file path (default: stdin)")
	runFlags.output = cmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")
	runFlags.conds = cmd.Flags().StringSlice("cond", nil, "names of the conditions and pop tests that hold")
	runFlags.partial = cmd.Flags().Bool("partial", false, "do not treat the end of the input as the end of the stream")
	runFlags.tables = cmd.Flags().Bool("tables", false, "execute the generated tables")
	runFlags.breakOnError = cmd.Flags().BoolP("break-on-error", "b", false, "exit with status 1 when the machine ends in the error state")
	rootCmd.AddCommand(cmd)
}

type runResult struct {
	Result *driver.Result `json:"result"`
}

func runRun(cmd *cobra.Command, args []string) error {
	m, err := readMachine(args[0], *runFlags.gen.format)
	if err != nil {
		return fmt.Errorf("Cannot read a machine: %w", err)
	}

	var mc *driver.Machine
	if *runFlags.tables {
		conf, err := loadConfig(*rootFlags.config)
		if err != nil {
			return err
		}
		runFlags.gen.merge(cmd, conf)
		mc, err = newTableMachine(m, conf)
		if err != nil {
			return err
		}
	} else {
		mc, err = driver.NewGraphMachine(m)
		if err != nil {
			return err
		}
	}

	var src []byte
	{
		r := io.Reader(os.Stdin)
		if *runFlags.input != "" {
			f, err := os.Open(*runFlags.input)
			if err != nil {
				return fmt.Errorf("Cannot open the input file %s: %w", *runFlags.input, err)
			}
			defer f.Close()
			r = f
		}
		src, err = ioutil.ReadAll(r)
		if err != nil {
			return err
		}
	}

	conds := map[string]bool{}
	for _, c := range *runFlags.conds {
		conds[c] = true
	}
	tr := driver.NewTrace(conds)
	res, err := mc.Exec(tr, src, !*runFlags.partial)
	if err != nil {
		return err
	}

	w := os.Stdout
	if *runFlags.output != "" {
		f, err := os.OpenFile(*runFlags.output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("Cannot open the output file %s: %w", *runFlags.output, err)
		}
		defer f.Close()
		w = f
	}
	for _, e := range tr.Events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal an event; event: %v, error: %v", e, err)
		}
		fmt.Fprintf(w, "%v\n", string(data))
	}
	data, err := json.Marshal(&runResult{Result: res})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%v\n", string(data))

	if res.Error && *runFlags.breakOnError {
		return fmt.Errorf("the machine ended in the error state at position %v", res.P)
	}
	return nil
}

func newTableMachine(m *fsm.Machine, conf *config) (*driver.Machine, error) {
	tgt, err := conf.resolve()
	if err != nil {
		return nil, err
	}
	out, err := codegen.Generate(m, tgt.host, tgt.style, tgt.opts...)
	if err != nil {
		return nil, fmt.Errorf("Failed to generate a scanner: %w", err)
	}
	return driver.NewTableMachine(out)
}
