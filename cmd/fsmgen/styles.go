package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nihei9/fsmgen/codegen"
	"github.com/nihei9/fsmgen/host"
	"github.com/spf13/cobra"
)

var stylesFlags = struct {
	hostsFile *string
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "styles",
		Short: "List code styles and the strategy each host uses for them",
		Example: `  fsmgen styles
  fsmgen styles --hosts-file hosts.toml`,
		Args: cobra.NoArgs,
		RunE: runStyles,
	}
	stylesFlags.hostsFile = cmd.Flags().String("hosts-file", "", "toml file defining additional hosts")
	rootCmd.AddCommand(cmd)
}

func runStyles(cmd *cobra.Command, args []string) error {
	reg := host.NewRegistry()
	if *stylesFlags.hostsFile != "" {
		err := reg.LoadFile(*stylesFlags.hostsFile)
		if err != nil {
			return err
		}
	}
	return writeStyles(os.Stdout, reg)
}

var styleFlagNames = map[codegen.Style]string{
	codegen.BinaryLoop: "-T0",
	codegen.BinaryExp:  "-T1",
	codegen.FlatLoop:   "-F0",
	codegen.FlatExp:    "-F1",
	codegen.SwitchLoop: "-G0",
	codegen.SwitchExp:  "-G1",
	codegen.IpGoto:     "-G2",
}

// writeStyles prints one row per style and one column per host. A host
// that cannot run a style shows `-`.
func writeStyles(w io.Writer, reg *host.Registry) error {
	names := reg.Names()
	fmt.Fprintf(w, "%-12v %-4v", "style", "flag")
	for _, n := range names {
		fmt.Fprintf(w, " %-20v", n)
	}
	fmt.Fprintf(w, "\n")
	for _, style := range codegen.Styles {
		var b strings.Builder
		fmt.Fprintf(&b, "%-12v %-4v", style, styleFlagNames[style])
		for _, n := range names {
			h, err := reg.Lookup(n)
			if err != nil {
				return err
			}
			st, err := codegen.Select(h, style)
			strategy := "-"
			if err == nil {
				strategy = st.Name()
			}
			fmt.Fprintf(&b, " %-20v", strategy)
		}
		fmt.Fprintf(w, "%v\n", strings.TrimRight(b.String(), " "))
	}
	return nil
}
