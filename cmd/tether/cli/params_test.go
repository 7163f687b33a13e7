// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestBindFlags_BasicTypes(t *testing.T) {
	type params struct {
		Name     string        `flag:"name" desc:"the name"`
		Force    bool          `flag:"force,f" desc:"force it"`
		Count    int           `flag:"count" default:"3" desc:"number of items"`
		TTL      time.Duration `flag:"ttl" desc:"lifetime"`
		Tags     []string      `flag:"tags" desc:"tag list"`
		Untagged string
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if p.Count != 3 {
		t.Errorf("Count default = %d, want 3", p.Count)
	}

	err := flagSet.Parse([]string{"--name", "main", "-f", "--ttl", "90m", "--tags", "a,b"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Name != "main" || !p.Force || p.TTL != 90*time.Minute {
		t.Errorf("params = %+v", p)
	}
	if strings.Join(p.Tags, ",") != "a,b" {
		t.Errorf("Tags = %v, want [a b]", p.Tags)
	}
	if flagSet.Lookup("untagged") != nil {
		t.Error("untagged field was bound")
	}
}

func TestBindFlags_EmbeddedAndBinder(t *testing.T) {
	type params struct {
		GlobalFlags
		JSONOutput
	}

	var p params
	flagSet := FlagsFromParams("list", &p)
	if err := flagSet.Parse([]string{"--json", "--socket", "/tmp/x.sock"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.OutputJSON {
		t.Error("OutputJSON = false, want true")
	}
	if p.SocketPath() != "/tmp/x.sock" {
		t.Errorf("SocketPath() = %q", p.SocketPath())
	}
}

type restoreFlag struct{ mode string }

func (f *restoreFlag) String() string { return f.mode }
func (f *restoreFlag) Type() string   { return "mode" }
func (f *restoreFlag) Set(value string) error {
	if value != "screen" && value != "lines" {
		return fmt.Errorf("unknown mode %q", value)
	}
	f.mode = value
	return nil
}

func TestBindFlags_ValueFieldWithDefault(t *testing.T) {
	type params struct {
		Mode restoreFlag `flag:"mode" default:"screen" desc:"restore mode"`
	}
	var p params
	flagSet := FlagsFromParams("test", &p)
	if p.Mode.mode != "screen" {
		t.Errorf("default mode = %q, want screen", p.Mode.mode)
	}
	if got := flagSet.Lookup("mode").DefValue; got != "screen" {
		t.Errorf("DefValue = %q, want screen", got)
	}
	if err := flagSet.Parse([]string{"--mode", "lines"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Mode.mode != "lines" {
		t.Errorf("mode = %q, want lines", p.Mode.mode)
	}
	if err := flagSet.Parse([]string{"--mode", "bogus"}); err == nil {
		t.Error("Parse accepted an invalid mode")
	}
}

func TestBindFlags_RejectsBadDefault(t *testing.T) {
	type params struct {
		TTL time.Duration `flag:"ttl" default:"forever"`
	}
	var p params
	if err := BindFlags(&p, pflag.NewFlagSet("test", pflag.ContinueOnError)); err == nil {
		t.Fatal("BindFlags accepted an unparseable default")
	}
}

func TestBindFlags_RejectsUnsupportedType(t *testing.T) {
	type params struct {
		Ratio float32 `flag:"ratio"`
	}
	var p params
	if err := BindFlags(&p, pflag.NewFlagSet("test", pflag.ContinueOnError)); err == nil {
		t.Fatal("BindFlags accepted a float32 field")
	}
	if err := BindFlags(p, pflag.NewFlagSet("test", pflag.ContinueOnError)); err == nil {
		t.Fatal("BindFlags accepted a non-pointer")
	}
}
