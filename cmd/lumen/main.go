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

// lumen is the command-line front door to the lazy-evaluation machine:
// it loads encoded program images, forces their root thunks, and prints
// results and listings.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/urfave/cli.v1"

	"github.com/lumen-lang/go-lumen/builtin"
	"github.com/lumen-lang/go-lumen/codec"
	"github.com/lumen-lang/go-lumen/resource"
	"github.com/lumen-lang/go-lumen/segment"
	"github.com/lumen-lang/go-lumen/store"
	"github.com/lumen-lang/go-lumen/vm"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "logging verbosity: 0=silent, 1=info, 2=debug",
	}

	runCommand = cli.Command{
		Action:    runImage,
		Name:      "run",
		Usage:     "Force the root thunk of an encoded program image",
		ArgsUsage: "<image-file>",
	}
	listCommand = cli.Command{
		Action:    listImage,
		Name:      "list",
		Usage:     "Print the op listing of every code object in an image",
		ArgsUsage: "<image-file>",
	}
	dumpConfigCommand = cli.Command{
		Action: func(ctx *cli.Context) error {
			cfg, err := makeConfig(ctx)
			if err != nil {
				return err
			}
			return dumpConfig(cfg)
		},
		Name:  "dumpconfig",
		Usage: "Show configuration values",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "lumen"
	app.Usage = "the lumen lazy-evaluation machine"
	app.Flags = []cli.Flag{configFileFlag, verbosityFlag}
	app.Commands = []cli.Command{runCommand, listCommand, dumpConfigCommand}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func makeConfig(ctx *cli.Context) (lumenConfig, error) {
	cfg := defaultConfig()
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if ctx.GlobalIsSet(verbosityFlag.Name) {
		cfg.Verbosity = ctx.GlobalInt(verbosityFlag.Name)
	}
	return cfg, nil
}

func makeLogger(verbosity int) (*zap.Logger, error) {
	if verbosity <= 0 {
		return zap.NewNop(), nil
	}
	zc := zap.NewDevelopmentConfig()
	if verbosity == 1 {
		zc.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return zc.Build()
}

func makeStore(cfg lumenConfig) *store.Store {
	var data segment.Allocator
	if cfg.Store.Mmap {
		data = segment.NewMmapArena(cfg.Store.DataArenaWords)
	} else {
		data = segment.NewArena(cfg.Store.DataArenaWords)
	}
	return store.New(segment.NewArena(cfg.Store.ObjectArenaWords), data)
}

// loadImageFile reads an image file and loads it into the store,
// returning all loaded objects in slot order.
func loadImageFile(st *store.Store, path string) ([]store.ObjectRef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	words, err := codec.BytesToWords(raw)
	if err != nil {
		return nil, err
	}
	values, err := codec.DecodeImage(words)
	if err != nil {
		return nil, err
	}
	return st.LoadImage(values)
}

func runImage(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("run wants exactly one image file")
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	logger, err := makeLogger(cfg.Verbosity)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st := makeStore(cfg)
	refs, err := loadImageFile(st, ctx.Args().First())
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return fmt.Errorf("image is empty")
	}

	var httpClient *http.Client
	if cfg.Resource.HTTPTimeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Resource.HTTPTimeout}
	}
	providers := resource.NewChain(
		resource.NewFileProvider(st),
		resource.NewHTTPProvider(st, httpClient, logger),
	)
	snap, err := resource.NewSnapshot(providers, cfg.Resource.SnapshotEntries)
	if err != nil {
		return err
	}
	var provider resource.Provider = snap
	if cfg.Resource.CachePath != "" {
		dbc, err := resource.OpenDBCache(snap, st, cfg.Resource.CachePath)
		if err != nil {
			return err
		}
		defer dbc.Close()
		provider = dbc
	}
	registry := builtin.Default()
	resource.RegisterFetch(registry, provider)

	// The last image slot is the program root; wrap it in a thunk if it
	// is directly callable.
	root := refs[len(refs)-1]
	d, err := root.Value()
	if err != nil {
		return err
	}
	v, err := d.Decode()
	if err != nil {
		return err
	}
	if v.Tag == codec.TagCode || v.Tag == codec.TagPartial {
		if root, err = st.NewObject(codec.Thunk(root.Ptr())); err != nil {
			return err
		}
	}

	machine := vm.NewMachine(st, nil, registry, logger)
	res, err := machine.Force(context.Background(), root)
	if err != nil {
		return err
	}
	rd, err := res.Value()
	if err != nil {
		return err
	}
	rv, err := rd.Decode()
	if err != nil {
		return err
	}
	fmt.Println(formatValue(rv))
	return nil
}

func listImage(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("list wants exactly one image file")
	}
	raw, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}
	words, err := codec.BytesToWords(raw)
	if err != nil {
		return err
	}
	values, err := codec.DecodeImage(words)
	if err != nil {
		return err
	}
	for slot, v := range values {
		if v.Tag != codec.TagCode {
			continue
		}
		c := v.Code
		fmt.Printf("code %q (slot %d): %d params, %d constants\n", c.Name, slot+1, len(c.Params), len(c.Constants))
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"addr", "opcode", "deps", "operands", "dest"})
		for addr := range c.Ops {
			op := &c.Ops[addr]
			table.Append([]string{
				fmt.Sprintf("%d", addr),
				op.Opcode.String(),
				fmt.Sprintf("%d", op.NumDeps),
				formatOperands(op),
				formatDest(op),
			})
		}
		table.Render()
	}
	return nil
}

func formatOperands(op *codec.Op) string {
	s := ""
	switch op.Opcode {
	case codec.OpRet, codec.OpForceRet, codec.OpForce, codec.OpInvoke, codec.OpMatch:
		s = fmt.Sprintf("%%%d", op.Src)
	case codec.OpBind, codec.OpSelect:
		s = fmt.Sprintf("%%%d %v", op.Src, op.Args)
	case codec.OpBuiltin:
		s = fmt.Sprintf("%s %v", op.Name, op.Args)
	}
	return s
}

func formatDest(op *codec.Op) string {
	if !op.Opcode.HasDest() {
		return ""
	}
	return fmt.Sprintf("%%%d used-by %v", op.Dest.ID, op.Dest.UsedBy)
}

func formatValue(v *codec.Value) string {
	switch v.Tag {
	case codec.TagUnit:
		return "()"
	case codec.TagInt:
		return fmt.Sprintf("%d", v.Int)
	case codec.TagFloat:
		return fmt.Sprintf("%g", v.Float)
	case codec.TagBool:
		return fmt.Sprintf("%t", v.Bool)
	case codec.TagBuffer:
		return fmt.Sprintf("buffer[%d bytes]", len(v.Buffer))
	case codec.TagPartial:
		return fmt.Sprintf("partial(%s, %d args)", v.CodePtr, len(v.Args))
	case codec.TagCode:
		return fmt.Sprintf("code %q", v.Code.Name)
	default:
		return v.Tag.String()
	}
}
