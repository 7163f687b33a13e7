// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// FlagBinder is implemented by parameter groups that register their
// own flags, such as [GlobalFlags].
type FlagBinder interface {
	AddFlags(flagSet *pflag.FlagSet)
}

// FlagsFromParams returns a flag set bound to the tagged fields of
// params, a pointer to a struct. A params type BindFlags cannot handle
// is a bug in the command, so it panics.
//
//	var params attachParams
//	command := &cli.Command{
//	    Flags: func() *pflag.FlagSet {
//	        return cli.FlagsFromParams("attach", &params)
//	    },
//	    Run: func(args []string) error {
//	        // params fields are populated after flag parsing
//	    },
//	}
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers a flag for each tagged field of the struct
// params points to.
//
// Tags: flag:"name" or flag:"name,n" names the flag and its optional
// shorthand (untagged fields are skipped); desc:"..." is the help text;
// default:"..." is parsed exactly as the same text on the command line
// would be.
//
// Field types: string, bool, int, [time.Duration], []string, or any
// type whose pointer implements [pflag.Value]. Embedded structs are
// walked recursively; a struct field whose pointer implements
// [FlagBinder] binds itself instead.
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStruct(value.Elem(), flagSet)
}

// flagSpec is the parsed form of a field's tags.
type flagSpec struct {
	name, shorthand, usage, defaultValue string
}

func bindStruct(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	structType := structValue.Type()
	for i := range structType.NumField() {
		field, fieldValue := structType.Field(i), structValue.Field(i)
		if !field.IsExported() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if binder, ok := fieldValue.Addr().Interface().(FlagBinder); ok {
				binder.AddFlags(flagSet)
				continue
			}
			if field.Anonymous {
				if err := bindStruct(fieldValue, flagSet); err != nil {
					return fmt.Errorf("embedded %s: %w", field.Name, err)
				}
				continue
			}
		}

		tag, ok := field.Tag.Lookup("flag")
		if !ok || tag == "" {
			continue
		}
		name, shorthand, _ := strings.Cut(tag, ",")
		spec := flagSpec{
			name:         name,
			shorthand:    shorthand,
			usage:        field.Tag.Get("desc"),
			defaultValue: field.Tag.Get("default"),
		}
		if err := bindField(fieldValue, flagSet, spec); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func bindField(fieldValue reflect.Value, flagSet *pflag.FlagSet, spec flagSpec) error {
	switch target := fieldValue.Addr().Interface().(type) {
	case pflag.Value:
		flagSet.VarP(target, spec.name, spec.shorthand, spec.usage)
	case *string:
		flagSet.StringVarP(target, spec.name, spec.shorthand, "", spec.usage)
	case *bool:
		flagSet.BoolVarP(target, spec.name, spec.shorthand, false, spec.usage)
	case *int:
		flagSet.IntVarP(target, spec.name, spec.shorthand, 0, spec.usage)
	case *time.Duration:
		flagSet.DurationVarP(target, spec.name, spec.shorthand, 0, spec.usage)
	case *[]string:
		// Set on a slice flag appends after the first call, so the
		// default goes in at registration instead.
		var defaults []string
		if spec.defaultValue != "" {
			defaults = strings.Split(spec.defaultValue, ",")
		}
		flagSet.StringSliceVarP(target, spec.name, spec.shorthand, defaults, spec.usage)
		return nil
	default:
		return fmt.Errorf("unsupported type %s for flag --%s", fieldValue.Type(), spec.name)
	}

	if spec.defaultValue == "" {
		return nil
	}
	flag := flagSet.Lookup(spec.name)
	if err := flag.Value.Set(spec.defaultValue); err != nil {
		return fmt.Errorf("default for --%s: %w", spec.name, err)
	}
	flag.DefValue = flag.Value.String()
	return nil
}
