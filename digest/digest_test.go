package digest

import (
	"bytes"
	"strings"
	"testing"
)

func TestSumAndHexRoundTrip(t *testing.T) {
	d := Sum([]byte("hello world"))
	hexStr := d.Hex()
	if len(hexStr) != Size*2 {
		t.Fatalf("hex length = %d, want %d", len(hexStr), Size*2)
	}
	if strings.ToLower(hexStr) != hexStr {
		t.Fatalf("hex must be lowercase, got %q", hexStr)
	}
	back, err := FromHex(hexStr)
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	if back != d {
		t.Fatalf("round trip mismatch")
	}
}

func TestCtxStreaming(t *testing.T) {
	c := NewCtx()
	if _, err := c.Write([]byte("hello ")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}
	streamed := c.Finish()
	direct := Sum([]byte("hello world"))
	if streamed != direct {
		t.Fatalf("streamed digest does not match one-shot digest")
	}
}

func TestOfReader(t *testing.T) {
	d, err := Of(bytes.NewReader([]byte("abc")))
	if err != nil {
		t.Fatal(err)
	}
	if d != Sum([]byte("abc")) {
		t.Fatalf("Of() mismatch")
	}
}

func TestFromHexRejectsBadLength(t *testing.T) {
	if _, err := FromHex("deadbeef"); err == nil {
		t.Fatalf("expected error for short hex string")
	}
}

func TestZero(t *testing.T) {
	var d Digest
	if !d.Zero() {
		t.Fatalf("zero-value Digest should report Zero() == true")
	}
	if Sum([]byte("x")).Zero() {
		t.Fatalf("non-zero digest reported as Zero()")
	}
}
