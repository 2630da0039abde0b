package resource

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestComputeDeterministic(t *testing.T) {
	a := Compute([]byte("hello"))
	b := Compute([]byte("hello"))
	if a != b {
		t.Fatalf("same content produced %s and %s", a, b)
	}
	if a.Size != 5 {
		t.Errorf("size = %d, want 5", a.Size)
	}
	if Compute([]byte("hellp")) == a {
		t.Error("different content produced equal IDs")
	}
}

func TestIdentifyMatchesCompute(t *testing.T) {
	data := strings.Repeat("ark", 10000)
	got, err := Identify(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if want := Compute([]byte(data)); got != want {
		t.Errorf("Identify = %s, Compute = %s", got, want)
	}
}

func TestIdentifyFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_ = afero.WriteFile(fsys, "/r/a.txt", []byte("content"), 0o644)
	id, err := IdentifyFile(fsys, "/r/a.txt")
	if err != nil {
		t.Fatalf("IdentifyFile: %v", err)
	}
	if id != Compute([]byte("content")) {
		t.Errorf("unexpected id %s", id)
	}
	if _, err := IdentifyFile(fsys, "/r/missing"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseRoundTrip(t *testing.T) {
	id := Compute([]byte("round trip"))
	parsed, err := Parse(id.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != id {
		t.Errorf("Parse(String()) = %s, want %s", parsed, id)
	}
}

func TestParseRejects(t *testing.T) {
	cases := []string{
		"",
		"abc",
		"12",
		"x-00112233445566778899aabbccddeeff",
		"12-0011",
		"12-zz112233445566778899aabbccddeeff",
	}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q) should fail", c)
		}
	}
}

func TestCompare(t *testing.T) {
	small := Compute([]byte("a"))
	large := Compute([]byte("aaaa"))
	if small.Compare(large) >= 0 {
		t.Error("shorter content should sort first")
	}
	if small.Compare(small) != 0 {
		t.Error("id should equal itself")
	}
}

func TestJSONMapKey(t *testing.T) {
	id := Compute([]byte("k"))
	out, err := json.Marshal(map[ID]int{id: 2})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back map[ID]int
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back[id] != 2 {
		t.Errorf("round trip lost entry: %s", out)
	}
}
