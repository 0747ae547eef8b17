// Copyright 2025 The go-lumen Authors
// This file is part of go-lumen.
//
// go-lumen is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-lumen is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-lumen. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/naoina/toml"
)

// storeConfig sizes the machine's arenas.
type storeConfig struct {
	ObjectArenaWords uint64
	DataArenaWords   uint64
	Mmap             bool // back the data arena with anonymous mappings
}

// resourceConfig controls the provider stack.
type resourceConfig struct {
	HTTPTimeout     time.Duration
	SnapshotEntries int
	CachePath       string `toml:",omitempty"` // enables the on-disk fetch cache
}

type lumenConfig struct {
	Store     storeConfig
	Resource  resourceConfig
	Verbosity int
}

func defaultConfig() lumenConfig {
	return lumenConfig{
		Store: storeConfig{
			ObjectArenaWords: 1 << 20,
			DataArenaWords:   1 << 22,
		},
		Resource: resourceConfig{
			HTTPTimeout:     30 * time.Second,
			SnapshotEntries: 1024,
		},
	}
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

func loadConfig(file string, cfg *lumenConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

func dumpConfig(cfg lumenConfig) error {
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
