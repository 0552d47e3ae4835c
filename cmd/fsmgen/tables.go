package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nihei9/fsmgen/codegen"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var tablesFlags = struct {
	gen    *genFlags
	output *string
	values *bool
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "tables [machine]",
		Short: "Show the tables a style generates and the host types chosen for them",
		Example: `  fsmgen tables lexer.json --host java --style flat-loop
  fsmgen tables lexer.json --output-format yaml --values`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTables,
	}
	tablesFlags.gen = addGenFlags(cmd)
	tablesFlags.output = cmd.Flags().String("output-format", "json", "output format: json or yaml")
	tablesFlags.values = cmd.Flags().Bool("values", false, "include the table values")
	rootCmd.AddCommand(cmd)
}

type tableInfo struct {
	Name   string  `json:"name" yaml:"name"`
	Type   string  `json:"type" yaml:"type"`
	Len    int     `json:"len" yaml:"len"`
	Min    int64   `json:"min" yaml:"min"`
	Max    int64   `json:"max" yaml:"max"`
	Values []int64 `json:"values,omitempty" yaml:"values,omitempty"`
}

type tablesReport struct {
	Host       string       `json:"host" yaml:"host"`
	Style      string       `json:"style" yaml:"style"`
	Strategy   string       `json:"strategy" yaml:"strategy"`
	States     int          `json:"states" yaml:"states"`
	FirstFinal int          `json:"first_final" yaml:"first_final"`
	Error      int          `json:"error" yaml:"error"`
	NfaDepth   int          `json:"nfa_depth" yaml:"nfa_depth"`
	Tables     []*tableInfo `json:"tables" yaml:"tables"`
}

func runTables(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	}
	conf, err := loadConfig(*rootFlags.config)
	if err != nil {
		return err
	}
	tablesFlags.gen.merge(cmd, conf)
	tgt, err := conf.resolve()
	if err != nil {
		return err
	}
	m, err := readMachine(path, *tablesFlags.gen.format)
	if err != nil {
		return fmt.Errorf("Cannot read a machine: %w", err)
	}
	out, err := codegen.Generate(m, tgt.host, tgt.style, tgt.opts...)
	if err != nil {
		return fmt.Errorf("Failed to generate a scanner: %w", err)
	}
	return writeTables(os.Stdout, newTablesReport(tgt.host.Name(), out, *tablesFlags.values), *tablesFlags.output)
}

func newTablesReport(hostName string, out *codegen.Output, values bool) *tablesReport {
	r := &tablesReport{
		Host:       hostName,
		Style:      out.Strategy.Style().String(),
		Strategy:   out.Strategy.Name(),
		States:     len(out.Machine.States),
		FirstFinal: out.Machine.FirstFinal,
		Error:      out.Machine.ErrorState,
		NfaDepth:   out.Machine.NfaDepth,
	}
	for _, d := range out.Layout.Decls {
		info := &tableInfo{
			Name: d.Name,
			Type: d.Type.Name,
			Len:  len(d.Values),
			Min:  d.Min,
			Max:  d.Max,
		}
		if values {
			info.Values = d.Values
		}
		r.Tables = append(r.Tables, info)
	}
	return r
}

func writeTables(w io.Writer, r *tablesReport, format string) error {
	var data []byte
	var err error
	switch format {
	case "json":
		data, err = json.MarshalIndent(r, "", "  ")
	case "yaml":
		data, err = yaml.Marshal(r)
	default:
		return fmt.Errorf("unknown output format: %v", format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%v\n", string(data))
	return nil
}
