// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
	"time"
)

type sampleHeader struct {
	Action string `cbor:"action"`
	Name   string `cbor:"name,omitempty"`
	Rows   uint16 `cbor:"rows"`
}

type sampleListed struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleHeader{Action: "attach", Name: "main", Rows: 48}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleHeader
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	header := sampleHeader{Action: "kill", Name: "build", Rows: 1}

	first, err := Marshal(header)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(header)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestJSONTagFallback(t *testing.T) {
	original := sampleListed{Name: "main", Status: "attached"}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var asMap map[string]any
	if err := Unmarshal(data, &asMap); err != nil {
		t.Fatalf("Unmarshal into map: %v", err)
	}
	if asMap["status"] != "attached" {
		t.Errorf("json tag name not used as CBOR key: %v", asMap)
	}
}

func TestUnmarshalRejectsDuplicateKeys(t *testing.T) {
	// {"action": "list", "action": "kill"}
	duplicate := []byte{
		0xa2,
		0x66, 'a', 'c', 't', 'i', 'o', 'n', 0x64, 'l', 'i', 's', 't',
		0x66, 'a', 'c', 't', 'i', 'o', 'n', 0x64, 'k', 'i', 'l', 'l',
	}
	var header sampleHeader
	if err := Unmarshal(duplicate, &header); err == nil {
		t.Errorf("Unmarshal accepted duplicate keys, decoded %+v", header)
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var header sampleHeader
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &header); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestTimestampsKeepNanoseconds(t *testing.T) {
	type listed struct {
		StartedAt time.Time `json:"started_at"`
	}
	started := time.Date(2026, 3, 14, 15, 9, 26, 535897932, time.UTC)

	data, err := Marshal(listed{StartedAt: started})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded listed
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.StartedAt.Equal(started) {
		t.Fatalf("started_at = %v, want %v", decoded.StartedAt, started)
	}
}

func TestUnmarshalRejectsIndefiniteLength(t *testing.T) {
	// {_ "action": "list"} with an indefinite-length map.
	indefinite := []byte{
		0xbf,
		0x66, 'a', 'c', 't', 'i', 'o', 'n', 0x64, 'l', 'i', 's', 't',
		0xff,
	}
	var header sampleHeader
	if err := Unmarshal(indefinite, &header); err == nil {
		t.Errorf("Unmarshal accepted an indefinite-length map, decoded %+v", header)
	}
}

func TestUnmarshalRejectsDeepNesting(t *testing.T) {
	// Ten nested one-element arrays around an empty one.
	deep := append(bytes.Repeat([]byte{0x81}, maxHeaderNesting+2), 0x80)
	var decoded any
	if err := Unmarshal(deep, &decoded); err == nil {
		t.Error("Unmarshal accepted a header nested past the limit")
	}
}
