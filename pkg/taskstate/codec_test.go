package taskstate

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func Test_DecodeJobMap_Keeps_First_Position_And_Last_Value_For_Duplicate_Keys(t *testing.T) {
	t.Parallel()

	m, err := decodeJobMap([]byte(`{"a":1,"b":2,"a":3}`))
	if err != nil {
		t.Fatalf("decodeJobMap: %v", err)
	}

	if diff := cmp.Diff([]string{"a", "b"}, m.names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}

	if got, want := string(m.values["a"]), "3"; got != want {
		t.Fatalf("a=%s, want=%s", got, want)
	}
}

func Test_DecodeJobMap_Accepts_Empty_Object(t *testing.T) {
	t.Parallel()

	m, err := decodeJobMap([]byte("{}\n"))
	if err != nil {
		t.Fatalf("decodeJobMap: %v", err)
	}

	if m.len() != 0 {
		t.Fatalf("len=%d, want=0", m.len())
	}
}

func Test_JobMap_Encode_Escapes_Keys(t *testing.T) {
	t.Parallel()

	m := newJobMap()
	m.set(`src/"quoted".txt`, json.RawMessage(`true`))

	data, err := m.encode("  ")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if got, want := string(data), "{\n  \"src/\\\"quoted\\\".txt\": true\n}\n"; got != want {
		t.Fatalf("encode=%q, want=%q", got, want)
	}

	back, err := decodeJobMap(data)
	if err != nil {
		t.Fatalf("decodeJobMap: %v", err)
	}

	if diff := cmp.Diff(m.names, back.names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func Test_JobMap_Remove_Drops_Name_From_Order(t *testing.T) {
	t.Parallel()

	m := newJobMap()
	m.set("a", json.RawMessage("1"))
	m.set("b", json.RawMessage("2"))
	m.set("c", json.RawMessage("3"))
	m.remove("b")
	m.remove("missing")
	m.set("b", json.RawMessage("4"))

	if diff := cmp.Diff([]string{"a", "c", "b"}, m.names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func Test_IsFalsy(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"null":    true,
		"false":   true,
		`""`:      true,
		"0":       true,
		"-0":      true,
		"0.0":     true,
		"0e10":    true,
		"true":    false,
		"1":       false,
		"0.001":   false,
		`"0"`:     false,
		`"false"`: false,
		"{}":      false,
		"[]":      false,
	}

	for raw, want := range cases {
		if got := isFalsy(json.RawMessage(raw)); got != want {
			t.Errorf("isFalsy(%s)=%t, want=%t", raw, got, want)
		}
	}
}
