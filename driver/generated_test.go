package driver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/nihei9/fsmgen/codegen"
	"github.com/nihei9/fsmgen/fsm"
	"github.com/nihei9/fsmgen/fsm/fsmtest"
	"github.com/nihei9/fsmgen/host"
	"github.com/stretchr/testify/require"
)

// scannerMain wraps the Go output of a machine whose actions are `push();`
// and the pop test `ok`. It scans every input with the pop test failing and
// then holding, with and without the end of input, and prints the results
// as JSON.
const scannerMain = `package main

import (
	"encoding/json"
	"os"
)

%v

type result struct {
	State  int      ` + "`json:\"state\"`" + `
	P      int      ` + "`json:\"p\"`" + `
	Events []string ` + "`json:\"events\"`" + `
}

func scan(data []byte, atEOF bool, ok bool) result {
	events := []string{}
	push := func() {
		events = append(events, "push")
	}
	var cs int
	p := 0
	pe := len(data)
	eof := -1
	if atEOF {
		eof = pe
	}
	_, _, _, _ = p, pe, eof, ok
	_ = push

	%v
	%v

	return result{State: cs, P: p, Events: events}
}

func main() {
	inputs := %#v
	var results []result
	for _, ok := range []bool{false, true} {
		for _, atEOF := range []bool{false, true} {
			for _, src := range inputs {
				results = append(results, scan([]byte(src), atEOF, ok))
			}
		}
	}
	json.NewEncoder(os.Stdout).Encode(results)
}
`

type scannerResult struct {
	State  int      `json:"state"`
	P      int      `json:"p"`
	Events []string `json:"events"`
}

// runScanner builds out as a Go program and returns what it prints.
func runScanner(t *testing.T, goCmd string, out *codegen.Output, inputs []string) []scannerResult {
	t.Helper()
	dir := t.TempDir()
	src := fmt.Sprintf(scannerMain, out.Data, out.Init, out.Exec, inputs)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module scanner\n\ngo 1.21\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(src), 0644))

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(goCmd, "run", ".")
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	require.NoError(t, cmd.Run(), "%v\n%v", stderr.String(), src)

	var results []scannerResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &results))
	return results
}

// The Go scanners emitted for the backtracking machines end in the same
// state and position, and run the same actions, as the analyzed graph.
func TestGeneratedGo_MatchesGraph(t *testing.T) {
	if testing.Short() {
		t.Skip("builds generated scanners")
	}
	goCmd, err := exec.LookPath("go")
	if err != nil {
		t.Skip("the go command is not available")
	}

	inputs := []string{"", "a", "b", "c", "x", "ab", "bc", "ba", "bb", "aaa"}
	styles := []codegen.Style{codegen.BinaryLoop, codegen.BinaryExp, codegen.FlatLoop, codegen.FlatExp}
	for _, m := range []*fsm.Machine{fsmtest.Nfa(), fsmtest.NfaChain()} {
		graph, err := NewGraphMachine(m)
		require.NoError(t, err)
		var expected []scannerResult
		for _, ok := range []bool{false, true} {
			for _, atEOF := range []bool{false, true} {
				for _, src := range inputs {
					tr := NewTrace(map[string]bool{"pt": ok})
					res, err := graph.Exec(tr, []byte(src), atEOF)
					require.NoError(t, err)
					expected = append(expected, scannerResult{
						State:  res.State,
						P:      res.P,
						Events: tr.Names(),
					})
				}
			}
		}

		for _, style := range styles {
			t.Run(fmt.Sprintf("%v %v", m.Name, style), func(t *testing.T) {
				out, err := codegen.Generate(m, host.Go, style)
				require.NoError(t, err)
				actual := runScanner(t, goCmd, out, inputs)
				require.Equal(t, expected, actual)
			})
		}
	}
}
