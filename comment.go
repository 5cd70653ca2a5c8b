// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmsim

import "strings"

// uncommenter strips comments from source lines. Block comments may span
// several lines; the first "*/" ends a block comment regardless of any "/*"
// found inside it.
//
type uncommenter struct {
	inBlock bool
}

func (u *uncommenter) strip(line string) string {
	if u.inBlock {
		i := strings.Index(line, "*/")
		if i < 0 {
			return ""
		}
		u.inBlock = false
		return u.strip(line[i+2:])
	}
	ss := strings.Index(line, "//")
	bs := strings.Index(line, "/*")
	if ss >= 0 && (bs < 0 || bs > ss) {
		return line[:ss]
	}
	if bs >= 0 {
		u.inBlock = true
		return line[:bs] + u.strip(line[bs+2:])
	}
	return line
}
