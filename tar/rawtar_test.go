package tar

import (
	"archive/tar"
	"bytes"
	"testing"
)

func buildStdlibTar(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	for name, content := range files {
		hdr := &tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := w.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestReadEntriesParsesStdlibTar(t *testing.T) {
	files := map[string][]byte{
		"a.txt": bytes.Repeat([]byte("A"), 1024),
		"b.bin": {0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01},
	}
	raw := buildStdlibTar(t, files)

	entries, err := ReadEntries(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(entries) != len(files) {
		t.Fatalf("got %d entries, want %d", len(entries), len(files))
	}
	for i, e := range entries {
		name := tarNameFromHeader(e.Header)
		want, ok := files[name]
		if !ok {
			t.Fatalf("entry %d has unexpected name %q", i, name)
		}
		if !bytes.Equal(e.Content, want) {
			t.Fatalf("entry %q content mismatch", name)
		}
	}
}

func TestWriteEntriesRoundTrip(t *testing.T) {
	files := map[string][]byte{
		"lib.rs": []byte("fn main() {}\n"),
	}
	raw := buildStdlibTar(t, files)

	entries, err := ReadEntries(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}

	var out bytes.Buffer
	if err := WriteEntries(&out, entries); err != nil {
		t.Fatalf("WriteEntries: %v", err)
	}

	reparsed, err := ReadEntries(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("ReadEntries(rewritten): %v", err)
	}
	if len(reparsed) != len(entries) {
		t.Fatalf("round-tripped entry count = %d, want %d", len(reparsed), len(entries))
	}
	for i := range entries {
		if entries[i].Header != reparsed[i].Header {
			t.Fatalf("entry %d header not preserved verbatim", i)
		}
		if !bytes.Equal(entries[i].Content, reparsed[i].Content) {
			t.Fatalf("entry %d content not preserved verbatim", i)
		}
	}
}

// tarNameFromHeader extracts the name field without reinterpreting the
// rest of the header, purely to assert against the test's expectations.
func tarNameFromHeader(h Header) string {
	name := h[0:100]
	i := bytes.IndexByte(name, 0)
	if i < 0 {
		i = len(name)
	}
	return string(name[:i])
}
