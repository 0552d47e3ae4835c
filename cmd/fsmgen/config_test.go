package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nihei9/fsmgen/codegen"
	"github.com/nihei9/fsmgen/fsm"
	"github.com/nihei9/fsmgen/fsm/fsmtest"
	"github.com/nihei9/fsmgen/host"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "fsmgen.toml", `
host = "tiny"
style = "-F1"
hosts_file = "hosts.toml"
tie_break = "last-seen"
nfa_max = 8
no_end = true
prefix = "lex_"

[names]
cs = "state"
`)
	writeFile(t, dir, "hosts.toml", `
[[host]]
name = "tiny"
feature = "var"
emission = "translated"
extension = ".tiny"

[[host.type]]
name = "u8"
min = 0
max = 255
size = 1

[[host.type]]
name = "s16"
min = -32768
max = 32767
size = 2
`)

	c, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "tiny", c.Host)
	require.Equal(t, filepath.Join(dir, "hosts.toml"), c.HostsFile)
	require.Equal(t, "state", c.Names.CS)
	require.Equal(t, "p", c.Names.P)
	require.Equal(t, "info", c.LogLevel)

	tgt, err := c.resolve()
	require.NoError(t, err)
	require.Equal(t, "tiny", tgt.host.Name())
	require.Equal(t, codegen.FlatExp, tgt.style)

	out, err := codegen.Generate(fsmtest.Scenario(), tgt.host, tgt.style, tgt.opts...)
	require.NoError(t, err)
	require.Equal(t, "state = lex_start;\n", out.Init)
	require.True(t, out.NoEnd)
	require.Equal(t, "scenario.tiny", out.FileName)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := loadConfig(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)

	path := writeFile(t, dir, "unknown.toml", `
host = "c"
colour = "blue"
`)
	_, err = loadConfig(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "colour")

	path = writeFile(t, dir, "broken.toml", `host = `)
	_, err = loadConfig(path)
	require.Error(t, err)
}

func TestConfig_Resolve_Errors(t *testing.T) {
	tests := []struct {
		caption string
		modify  func(c *config)
	}{
		{
			caption: "unknown host",
			modify: func(c *config) {
				c.Host = "cobol"
			},
		},
		{
			caption: "unknown style",
			modify: func(c *config) {
				c.Style = "-X9"
			},
		},
		{
			caption: "unknown tie-break",
			modify: func(c *config) {
				c.TieBreak = "random"
			},
		},
		{
			caption: "missing hosts file",
			modify: func(c *config) {
				c.HostsFile = filepath.Join(t.TempDir(), "none.toml")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			c := defaultConfig()
			tt.modify(c)
			_, err := c.resolve()
			require.Error(t, err)
		})
	}
}

func TestReadMachine(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeFile(t, dir, "m.json", `{"states": [{"final": true}], "start_state": 0}`)
	yamlPath := writeFile(t, dir, "m.yml", "states:\n  - final: true\nstart_state: 0\n")

	m, err := readMachine(jsonPath, "")
	require.NoError(t, err)
	require.Len(t, m.States, 1)

	m, err = readMachine(yamlPath, "")
	require.NoError(t, err)
	require.Len(t, m.States, 1)

	_, err = readMachine(yamlPath, string(fsm.FormatJSON))
	require.Error(t, err)
}

func TestWriteStyles(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, writeStyles(&b, host.NewRegistry()))
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, len(codegen.Styles)+1)
	require.Contains(t, lines[0], "csharp")
	require.Contains(t, lines[1], "binary-loop-goto")
	require.Contains(t, lines[1], "binary-loop-var")
	require.Contains(t, lines[7], "ip-goto")
	require.Contains(t, lines[7], "goto-exp-goto")
	require.Contains(t, lines[7], " -")
}

func TestWriteTables(t *testing.T) {
	out, err := codegen.Generate(fsmtest.Scenario(), host.Java, codegen.BinaryLoop)
	require.NoError(t, err)
	r := newTablesReport("java", out, true)
	require.Equal(t, "binary-loop-var", r.Strategy)
	require.Equal(t, 3, r.States)

	var b bytes.Buffer
	require.NoError(t, writeTables(&b, r, "json"))
	decoded := &tablesReport{}
	require.NoError(t, json.Unmarshal(b.Bytes(), decoded))
	require.Equal(t, r, decoded)

	b.Reset()
	require.NoError(t, writeTables(&b, r, "yaml"))
	decoded = &tablesReport{}
	require.NoError(t, yaml.Unmarshal(b.Bytes(), decoded))
	require.Equal(t, r, decoded)

	require.Error(t, writeTables(&b, r, "xml"))
}
