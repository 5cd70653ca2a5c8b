// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package config_test

import (
	"path/filepath"
	"testing"

	"github.com/db47h/vmsim/controller"
	"github.com/db47h/vmsim/internal/config"
	"github.com/db47h/vmsim/vmtest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := vmtest.WriteFiles(t, map[string]string{
		"vmemu.toml": `
speed = 5
animation_mode = "animate"
numeric_format = "hex"
builtins = "yes"
log_level = "debug"
`,
		"partial.toml": "speed = 1\n",
	})

	c, err := config.Load(filepath.Join(dir, "vmemu.toml"))
	require.NoError(t, err)
	assert.Equal(t, 5, c.Speed)
	assert.Equal(t, controller.Animate, c.Animation())
	assert.Equal(t, controller.Hexadecimal, c.Format())
	assert.Equal(t, config.BuiltinsYes, c.Builtins)
	assert.Equal(t, zerolog.DebugLevel, c.Level())

	c, err = config.Load(filepath.Join(dir, "partial.toml"))
	require.NoError(t, err)
	want := config.Default()
	want.Speed = 1
	assert.Equal(t, want, c)

	c, err = config.Load(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)

	c, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, controller.NoDisplayChanges, c.Animation())
	assert.Equal(t, zerolog.WarnLevel, c.Level())
}

func TestLoad_errors(t *testing.T) {
	data := map[string]string{
		"speed.toml":   "speed = 6\n",
		"anim.toml":    "animation_mode = \"fast\"\n",
		"format.toml":  "numeric_format = \"octal\"\n",
		"builtin.toml": "builtins = \"maybe\"\n",
		"level.toml":   "log_level = \"loud\"\n",
		"unknown.toml": "colour = true\n",
		"syntax.toml":  "speed = \n",
	}
	dir := vmtest.WriteFiles(t, data)
	for name := range data {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(filepath.Join(dir, name))
			assert.Error(t, err)
		})
	}
}
