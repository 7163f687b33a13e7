// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// maxHeaderNesting bounds how deeply a control header may nest. The
// deepest real header is an attach header's environment list inside
// its top-level map, so anything past this is malformed or hostile.
const maxHeaderNesting = 8

// headerEncOptions encodes headers deterministically (RFC 8949 §4.2)
// with session timestamps as tagged RFC 3339 strings, so `tether list`
// keeps the sub-second start and attach times that the default Unix
// seconds encoding would drop.
func headerEncOptions() cbor.EncOptions {
	options := cbor.CoreDetEncOptions()
	options.Time = cbor.TimeRFC3339Nano
	options.TimeTag = cbor.EncTagRequired
	return options
}

// headerDecOptions accepts what headerEncOptions produces from either
// side of the socket. Unknown fields are ignored so a newer client can
// still talk to an older daemon. Duplicate keys make a header
// ambiguous and are rejected, as are indefinite-length items, which no
// tether peer ever writes.
func headerDecOptions() cbor.DecOptions {
	return cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		IndefLength:     cbor.IndefLengthForbidden,
		MaxNestedLevels: maxHeaderNesting,
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
	}
}

var (
	headerEnc cbor.EncMode
	headerDec cbor.DecMode
)

func init() {
	var err error
	if headerEnc, err = headerEncOptions().EncMode(); err != nil {
		panic("codec: building header encoder: " + err.Error())
	}
	if headerDec, err = headerDecOptions().DecMode(); err != nil {
		panic("codec: building header decoder: " + err.Error())
	}
}

// Marshal encodes a control header.
func Marshal(v any) ([]byte, error) {
	return headerEnc.Marshal(v)
}

// Unmarshal decodes a control header into v.
func Unmarshal(data []byte, v any) error {
	return headerDec.Unmarshal(data, v)
}
