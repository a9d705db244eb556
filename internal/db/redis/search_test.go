package redis

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestBuildTagFilter(t *testing.T) {
	if got := buildTagFilter(nil); got != "" {
		t.Fatalf("empty tags = %q, want empty filter", got)
	}

	got := buildTagFilter(map[string]string{"tenant_id": "acme"})
	if got != "@tenant_id:{acme}" {
		t.Fatalf("filter = %q", got)
	}

	// Keys render in sorted order so the same query always serializes the
	// same way.
	got = buildTagFilter(map[string]string{"source": "cuad", "content_hash": "abc"})
	if got != "@content_hash:{abc} @source:{cuad}" {
		t.Fatalf("filter = %q", got)
	}
}

func TestBuildTagFilter_EscapesSpecials(t *testing.T) {
	got := buildTagFilter(map[string]string{"tenant_id": "acme-corp, inc."})
	want := `@tenant_id:{acme\-corp\,\ inc\.}`
	if got != want {
		t.Fatalf("filter = %q, want %q", got, want)
	}
}

func TestVectorToBytes(t *testing.T) {
	got := vectorToBytes([]float32{1.5, -2})
	if len(got) != 8 {
		t.Fatalf("length = %d, want 8", len(got))
	}
	first := math.Float32frombits(binary.LittleEndian.Uint32([]byte(got[:4])))
	second := math.Float32frombits(binary.LittleEndian.Uint32([]byte(got[4:])))
	if first != 1.5 || second != -2 {
		t.Fatalf("round trip = %v, %v", first, second)
	}
}
