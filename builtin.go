// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmsim

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// BuiltinAddress is the pseudo address that calls to built-in functions
// resolve to. The emulator runs a host implementation when it reaches a call
// to this address.
//
const BuiltinAddress = -1

// EnvUseBuiltins is the name of the environment variable that overrides the
// built-in function policy. "yes" allows built-ins, "no" denies them. Any
// other value defers to the Loader's Confirm function.
//
const EnvUseBuiltins = "N2T_VM_USE_BUILTINS"

// A Confirmer asks whether a program may use built-in implementations of the
// functions it does not define. It is called at most once per load.
//
type Confirmer func() bool

type builtinAccess int

const (
	accessUndecided builtinAccess = iota
	accessAuthorized
	accessDenied
)

// builtinResolver caches the built-in access decision for a single load.
//
type builtinResolver struct {
	status  builtinAccess
	getenv  func(string) string
	confirm Confirmer
}

func (r *builtinResolver) authorized() bool {
	if r.status == accessUndecided {
		env := ""
		if r.getenv != nil {
			env = r.getenv(EnvUseBuiltins)
		}
		use := strings.EqualFold(env, "yes") ||
			(!strings.EqualFold(env, "no") && r.confirm != nil && r.confirm())
		if use {
			r.status = accessAuthorized
		} else {
			r.status = accessDenied
		}
		log.Debug().Str("env", env).Bool("authorized", use).Msg("built-in access decided")
	}
	return r.status == accessAuthorized
}
