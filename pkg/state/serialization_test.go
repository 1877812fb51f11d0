package state

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMsgPackSerializer_RoundTrip(t *testing.T) {
	s := NewMsgPackSerializer()
	snap := Snapshot{
		DocID:   "doc1",
		Version: 3,
		Source:  "<p>Hi</p>",
		SavedAt: time.Unix(1700000000, 0).UTC(),
	}

	data, err := s.Marshal(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data[0] != 0 {
		t.Errorf("expected uncompressed marker, got %d", data[0])
	}

	var got Snapshot
	if err := s.Unmarshal(data, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DocID != snap.DocID || got.Version != snap.Version || got.Source != snap.Source {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if !got.SavedAt.Equal(snap.SavedAt) {
		t.Errorf("expected %v, got %v", snap.SavedAt, got.SavedAt)
	}
}

func TestMsgPackSerializer_CompressesLargePayloads(t *testing.T) {
	s := NewMsgPackSerializer()
	snap := Snapshot{
		DocID:   "doc1",
		Version: 1,
		Source:  strings.Repeat("<div className=\"card\"></div>", 100),
	}

	data, err := s.Marshal(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data[0] != 1 {
		t.Errorf("expected compressed marker, got %d", data[0])
	}
	if len(data) >= len(snap.Source) {
		t.Errorf("expected compression to shrink payload, got %d bytes", len(data))
	}

	var got Snapshot
	if err := s.Unmarshal(data, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Source != snap.Source {
		t.Error("roundtrip mismatch after compression")
	}
}

func TestMsgPackSerializer_CompressionDisabled(t *testing.T) {
	s := NewMsgPackSerializer()
	s.UseCompression = false

	data, err := s.Marshal(Snapshot{Source: strings.Repeat("x", 4096)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data[0] != 0 {
		t.Errorf("expected uncompressed marker, got %d", data[0])
	}
}

func TestMsgPackSerializer_EmptyData(t *testing.T) {
	s := NewMsgPackSerializer()
	var snap Snapshot
	if err := s.Unmarshal(nil, &snap); !errors.Is(err, ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}

func TestJSONSerializer(t *testing.T) {
	s := NewJSONSerializer()
	data, err := s.Marshal(Snapshot{DocID: "doc1", Version: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"doc_id":"doc1"`) {
		t.Errorf("unexpected JSON: %s", data)
	}

	var got Snapshot
	if err := s.Unmarshal(data, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("expected version 2, got %d", got.Version)
	}

	s.Pretty = true
	pretty, _ := s.Marshal(Snapshot{DocID: "doc1"})
	if !strings.Contains(string(pretty), "\n") {
		t.Error("expected pretty output to span lines")
	}
}

func TestGenericSerializer(t *testing.T) {
	var s Serializer[Snapshot] = NewGenericSerializer[Snapshot]()

	data, err := s.Serialize(Snapshot{DocID: "doc1", Version: 7, Source: "<p>x</p>"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Deserialize(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DocID != "doc1" || got.Version != 7 || got.Source != "<p>x</p>" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
}
