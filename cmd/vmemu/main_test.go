// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package main

import (
	"bytes"
	"path/filepath"
	"testing"

	vm "github.com/db47h/vmsim"
	"github.com/db47h/vmsim/vmtest"
	"github.com/stretchr/testify/assert"
)

func TestRun(t *testing.T) {
	t.Setenv(vm.EnvUseBuiltins, "")
	dir := vmtest.WriteFiles(t, map[string]string{
		"Main.vm":    "function Main.main 0\npush constant 2\npush constant 3\ncall Math.max 2\npop static 0\npush constant 0\nreturn\n",
		"Main.tst":   "load Main.vm,\noutput-file Main.out,\ncompare-to Main.cmp,\noutput-list static[0]%D1.3.1;\nrepeat 10 { vmstep; }\noutput;\n",
		"Main.cmp":   "|stati|\n|   3 |\n",
		"Bad.tst":    "load Main.vm,\nfrobnicate;\n",
		"Syntax.tst": "repeat {\n",
	})
	data := []struct {
		name   string
		args   []string
		status int
		out    string
		err    string
	}{
		{"ok", []string{"-builtins", "yes", "Main.tst"}, 0, "End of script - Comparison ended successfully\n", ""},
		{"denied", []string{"-builtins", "no", "Main.tst"}, 1, "", "function Sys.init not found"},
		{"command", []string{"-builtins", "yes", "Bad.tst"}, 1, "", "Unknown simulator command: frobnicate\n"},
		{"syntax", []string{"Syntax.tst"}, 1, "", "in line 1: missing '}' for repeat loop\n"},
		{"usage", nil, 2, "", ""},
		{"badFlag", []string{"-builtins", "maybe", "Main.tst"}, 2, "", "invalid builtins policy \"maybe\"\n"},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			args := append([]string{"-config", "", "-log-level", "disabled"}, d.args...)
			for i, a := range args {
				if filepath.Ext(a) == ".tst" {
					args[i] = filepath.Join(dir, a)
				}
			}
			status := run(args, &stdout, &stderr)
			assert.Equal(t, d.status, status, stderr.String())
			if d.out != "" {
				assert.Equal(t, d.out, stdout.String())
			}
			if d.err != "" {
				assert.Contains(t, stderr.String(), d.err)
			}
		})
	}
}

func TestRun_dump(t *testing.T) {
	dir := vmtest.WriteFiles(t, map[string]string{"A.vm": "push constant 1\n"})
	var stdout, stderr bytes.Buffer
	status := run([]string{"-config", "", "-dump", filepath.Join(dir, "A.vm")}, &stdout, &stderr)
	assert.Equal(t, 0, status, stderr.String())
	assert.Contains(t, stdout.String(), "Instructions")
}
