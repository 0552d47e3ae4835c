package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nihei9/fsmgen/codegen"
	"github.com/nihei9/fsmgen/fsm"
	"github.com/nihei9/fsmgen/host"
	"github.com/spf13/cobra"
)

const defaultConfigFileName = "fsmgen.toml"

type config struct {
	Host      string        `toml:"host"`
	Style     string        `toml:"style"`
	HostsFile string        `toml:"hosts_file"`
	Names     codegen.Names `toml:"names"`
	TieBreak  string        `toml:"tie_break"`
	NfaMax    int           `toml:"nfa_max"`
	NoEnd     bool          `toml:"no_end"`
	Prefix    string        `toml:"prefix"`
	LogLevel  string        `toml:"log_level"`
}

func defaultConfig() *config {
	return &config{
		Host:     "c",
		Style:    codegen.BinaryLoop.String(),
		Names:    codegen.DefaultNames(),
		LogLevel: "info",
	}
}

// loadConfig reads a config file over the defaults. When path is empty the
// default file is read if it exists.
func loadConfig(path string) (*config, error) {
	c := defaultConfig()
	required := path != ""
	if path == "" {
		path = defaultConfigFileName
	}
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("Cannot read the config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown keys in the config file %s: %v", path, strings.Join(keys, ", "))
	}
	if c.HostsFile != "" && !filepath.IsAbs(c.HostsFile) {
		c.HostsFile = filepath.Join(filepath.Dir(path), c.HostsFile)
	}
	return c, nil
}

// genFlags are the flags shared by the commands that generate code.
type genFlags struct {
	host      *string
	style     *string
	hostsFile *string
	tieBreak  *string
	nfaMax    *int
	noEnd     *bool
	prefix    *string
	format    *string
}

func addGenFlags(cmd *cobra.Command) *genFlags {
	return &genFlags{
		host:      cmd.Flags().StringP("host", "H", "", "host language (default: c)"),
		style:     cmd.Flags().StringP("style", "s", "", "code style: "+styleList()+" or -T0 ... -G2 (default: binary-loop)"),
		hostsFile: cmd.Flags().String("hosts-file", "", "toml file defining additional hosts"),
		tieBreak:  cmd.Flags().String("tie-break", "", "default transition tie-break: first-seen or last-seen"),
		nfaMax:    cmd.Flags().Int("nfa-max", 0, "depth of the backtracking stack (default: the number of alternatives)"),
		noEnd:     cmd.Flags().Bool("no-end", false, "omit the end of buffer tests"),
		prefix:    cmd.Flags().String("prefix", "", "prefix of generated identifiers"),
		format:    cmd.Flags().StringP("format", "f", "", "machine format: json or yaml (default: by file extension)"),
	}
}

func styleList() string {
	var names []string
	for _, s := range codegen.Styles {
		names = append(names, s.String())
	}
	return strings.Join(names, ", ")
}

// merge applies the flags the user set over c.
func (f *genFlags) merge(cmd *cobra.Command, c *config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		c.Host = *f.host
	}
	if flags.Changed("style") {
		c.Style = *f.style
	}
	if flags.Changed("hosts-file") {
		c.HostsFile = *f.hostsFile
	}
	if flags.Changed("tie-break") {
		c.TieBreak = *f.tieBreak
	}
	if flags.Changed("nfa-max") {
		c.NfaMax = *f.nfaMax
	}
	if flags.Changed("no-end") {
		c.NoEnd = *f.noEnd
	}
	if flags.Changed("prefix") {
		c.Prefix = *f.prefix
	}
}

type target struct {
	host  host.Capability
	style codegen.Style
	opts  []codegen.GenerateOption
}

// resolve turns the merged config into a host, a style and generation
// options.
func (c *config) resolve() (*target, error) {
	reg := host.NewRegistry()
	if c.HostsFile != "" {
		err := reg.LoadFile(c.HostsFile)
		if err != nil {
			return nil, err
		}
	}
	h, err := reg.Lookup(c.Host)
	if err != nil {
		return nil, err
	}
	style, err := codegen.ParseStyle(c.Style)
	if err != nil {
		return nil, err
	}
	tb, err := fsm.ParseTieBreak(c.TieBreak)
	if err != nil {
		return nil, err
	}
	opts := []codegen.GenerateOption{
		codegen.WithNames(c.Names),
		codegen.WithTieBreak(tb),
		codegen.WithNfaMax(c.NfaMax),
	}
	if c.NoEnd {
		opts = append(opts, codegen.WithNoEnd())
	}
	if c.Prefix != "" {
		opts = append(opts, codegen.WithPrefix(c.Prefix))
	}
	return &target{
		host:  h,
		style: style,
		opts:  opts,
	}, nil
}

// readMachine reads a machine from path, or from stdin when path is empty.
func readMachine(path string, format string) (*fsm.Machine, error) {
	r := os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("Cannot open the machine file %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	if format == "" {
		format = string(fsm.FormatJSON)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = string(fsm.FormatYAML)
		}
	}
	return fsm.Decode(r, fsm.Format(format))
}
