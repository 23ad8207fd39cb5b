package telemetry

import (
	"encoding/json"
	"testing"
)

func TestEncode_PayloadShape(t *testing.T) {
	t.Parallel()

	rs := NewReadingSet()
	rs.Set("temperature", FloatReading(21.6))
	rs.Set("motion", BoolReading(true))
	rs.Set("lux", IntReading(512))
	rs.Set("door", BoolReading(false))

	got := string(Encode(rs))
	want := `{"temperature":22,"motion":1,"lux":512,"door":0}`
	if got != want {
		t.Errorf("Encode = %s, want %s", got, want)
	}

	// The payload must also be plain valid JSON.
	var decoded map[string]float64
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
}

func TestEncode_Sentinels(t *testing.T) {
	t.Parallel()

	rs := NewReadingSet()
	rs.Set("temperature", Invalid(Float))
	rs.Set("humidity", Invalid(Int))

	got := string(Encode(rs))
	want := `{"temperature":999.99,"humidity":999}`
	if got != want {
		t.Errorf("Encode = %s, want %s", got, want)
	}
}

func TestEncode_OrderStableAcrossUpdates(t *testing.T) {
	t.Parallel()

	rs := NewReadingSet()
	rs.Set("b", IntReading(1))
	rs.Set("a", IntReading(2))

	// Updating an existing key must not move it.
	rs.Set("b", IntReading(3))

	got := string(Encode(rs))
	want := `{"b":3,"a":2}`
	if got != want {
		t.Errorf("Encode = %s, want %s", got, want)
	}
}

func TestEncode_Empty(t *testing.T) {
	t.Parallel()

	if got := string(Encode(NewReadingSet())); got != "{}" {
		t.Errorf("Encode(empty) = %s, want {}", got)
	}
}
