// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmsim

import "testing"

func TestUncommenter(t *testing.T) {
	lines := []struct {
		in, out string
		block   bool
	}{
		{"push constant 1 // comment", "push constant 1 ", false},
		{"add /* short */ neg", "add  neg", false},
		{"sub /* starts", "sub ", true},
		{"still /* in comment", "", true},
		{"ends */ not", " not", false},
		{"// /* ignored", "", false},
		{"/* a */ /* b */ eq", "  eq", false},
		{"lt", "lt", false},
	}
	var u uncommenter
	for i, l := range lines {
		if got := u.strip(l.in); got != l.out {
			t.Errorf("%d: strip(%q) = %q, expected %q", i, l.in, got, l.out)
		}
		if u.inBlock != l.block {
			t.Errorf("%d: in block: %v, expected %v", i, u.inBlock, l.block)
		}
	}
}
