package storage_test

import (
	"encoding/json"
	"testing"

	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

func TestMetadataKeepsOrder(t *testing.T) {
	md := storage.Metadata{
		{Key: "Model", Value: "X100V"},
		{Key: "FNumber", Value: "\"28/10\""},
		{Key: "DateTime", Value: "2024:05:01 10:00:00"},
	}

	raw, err := json.Marshal(md)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	want := `{"Model":"X100V","FNumber":"\"28/10\"","DateTime":"2024:05:01 10:00:00"}`
	if string(raw) != want {
		t.Fatalf("expected %s, got %s", want, raw)
	}

	var decoded storage.Metadata
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if len(decoded) != 3 || decoded[0].Key != "Model" || decoded[2].Key != "DateTime" {
		t.Fatalf("unexpected decoded order: %+v", decoded)
	}
	if v, ok := decoded.Get("FNumber"); !ok || v != "\"28/10\"" {
		t.Fatalf("unexpected FNumber %q", v)
	}
}

func TestMetadataEmptyAndNonString(t *testing.T) {
	raw, err := json.Marshal(storage.Metadata(nil))
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("expected empty object, got %s", raw)
	}

	var decoded storage.Metadata
	if err := json.Unmarshal([]byte(`{"ISO":200,"Flash":true}`), &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if v, _ := decoded.Get("ISO"); v != "200" {
		t.Fatalf("expected ISO 200, got %q", v)
	}
	if v, _ := decoded.Get("Flash"); v != "true" {
		t.Fatalf("expected Flash true, got %q", v)
	}

	if err := json.Unmarshal([]byte(`[1,2]`), &decoded); err == nil {
		t.Fatalf("expected error for array input")
	}
}
