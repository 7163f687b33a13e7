// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
)

// JSONOutput adds a --json flag to a params struct. Commands that embed
// it check EmitJSON before printing their human-readable form:
//
//	if done, err := params.EmitJSON(reply.Sessions); done {
//		return err
//	}
type JSONOutput struct {
	OutputJSON bool `json:"-" flag:"json" desc:"print machine-readable JSON"`
}

// EmitJSON prints result to stdout when --json was given and reports
// whether it did. A nil slice prints as [] so scripts never see null.
func (j *JSONOutput) EmitJSON(result any) (bool, error) {
	if !j.OutputJSON {
		return false, nil
	}
	if value := reflect.ValueOf(result); value.Kind() == reflect.Slice && value.IsNil() {
		result = reflect.MakeSlice(value.Type(), 0, 0).Interface()
	}
	return true, WriteJSON(os.Stdout, result)
}

// WriteJSON writes value to w as two-space indented JSON.
func WriteJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
