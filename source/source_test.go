package source

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/cratestore/crate"
	libdig "github.com/nabbar/cratestore/digest"
	"github.com/nabbar/cratestore/internal/testutil"
	"github.com/nabbar/cratestore/store"
)

// populateBlobStore mimics what the ingestion pipeline would have done
// for a single reconstructible archive (the taskStoreDecomposed path),
// without going through the concurrent pipeline itself.
func populateBlobStore(st *store.Store, spec crate.Spec, archive []byte) {
	ccb, err := crate.Decompose(archive)
	Expect(err).To(BeNil())
	manifest, blobs := crate.ManifestFromContentBlobs(ccb)

	for _, b := range blobs {
		compressed := testutil.GzipCompress(GinkgoT(), b.Content)
		_, ierr := st.Insert(b.Digest, compressed)
		Expect(ierr).To(BeNil())
	}

	var manifestBuf bytes.Buffer
	Expect(manifest.Serialize(&manifestBuf)).To(BeNil())
	manifestDigest := libdig.Sum(manifestBuf.Bytes())
	compressed := testutil.GzipCompress(GinkgoT(), manifestBuf.Bytes())
	_, ierr := st.Insert(manifestDigest, compressed)
	Expect(ierr).To(BeNil())
	st.PutName(spec.FileName(), manifestDigest)
}

// populateOpaque mimics the taskStoreOpaque path (pipeline.go): the
// archive's own bytes are stored directly, keyed by SHA256 of those
// bytes, with no manifest wrapper at all.
func populateOpaque(st *store.Store, spec crate.Spec, archive []byte) {
	digest := libdig.Sum(archive)
	compressed := testutil.GzipCompress(GinkgoT(), archive)
	_, ierr := st.Insert(digest, compressed)
	Expect(ierr).To(BeNil())
	st.PutName(spec.FileName(), digest)
}

var _ = Describe("FileTree", func() {
	It("round-trips an archive written to the sharded directory layout", func() {
		dir := GinkgoT().TempDir()
		spec := crate.Spec{Name: "serde", Version: "1.0.0"}
		archive := testutil.BuildArchive(GinkgoT(), map[string][]byte{"serde-1.0.0/Cargo.toml": []byte("[package]\n")})

		shardDir := filepath.Join(dir, crate.NamePath(spec.Name))
		Expect(os.MkdirAll(shardDir, 0o755)).To(BeNil())
		Expect(os.WriteFile(filepath.Join(shardDir, spec.FileName()), archive, 0o644)).To(BeNil())

		ft := NewFileTree(dir)
		got, ok, err := ft.GetArchive(spec)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(archive))

		h, ok, err := ft.OpenHandle(spec)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(h.ListFiles()).To(Equal([]string{"serde-1.0.0/Cargo.toml"}))

		content, ok, err := h.ReadFile("serde-1.0.0/Cargo.toml")
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(string(content)).To(Equal("[package]\n"))
	})

	It("reports ok=false for an archive that was never written", func() {
		ft := NewFileTree(GinkgoT().TempDir())
		_, ok, err := ft.GetArchive(crate.Spec{Name: "nope", Version: "0.0.0"})
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("FlatCache", func() {
	It("round-trips an archive written to the flat directory", func() {
		dir := GinkgoT().TempDir()
		spec := crate.Spec{Name: "demo", Version: "2.0.0"}
		archive := testutil.BuildArchive(GinkgoT(), map[string][]byte{"demo-2.0.0/lib.rs": []byte("fn main() {}\n")})

		Expect(os.WriteFile(filepath.Join(dir, spec.FileName()), archive, 0o644)).To(BeNil())

		fc := NewFlatCache(dir)
		got, ok, err := fc.GetArchive(spec)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(archive))
	})
})

var _ = Describe("BlobStore", func() {
	It("reconstructs the original archive from its decomposed manifest", func() {
		st := testutil.OpenTempStore(GinkgoT())

		spec := crate.Spec{Name: "demo", Version: "1.0.0"}
		archive := testutil.BuildArchive(GinkgoT(), map[string][]byte{
			"demo-1.0.0/Cargo.toml": []byte("[package]\nname = \"demo\"\n"),
			"demo-1.0.0/src/lib.rs": []byte("fn main() {}\n"),
		})
		populateBlobStore(st, spec, archive)

		bs := NewBlobStore(st)
		got, ok, err := bs.GetArchive(spec)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(archive))
	})

	It("lists and reads individual entries through a Handle", func() {
		st := testutil.OpenTempStore(GinkgoT())

		spec := crate.Spec{Name: "demo", Version: "1.0.0"}
		archive := testutil.BuildArchive(GinkgoT(), map[string][]byte{
			"demo-1.0.0/Cargo.toml": []byte("[package]\n"),
		})
		populateBlobStore(st, spec, archive)

		bs := NewBlobStore(st)
		h, ok, err := bs.OpenHandle(spec)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(h.ListFiles()).To(Equal([]string{"demo-1.0.0/Cargo.toml"}))

		content, ok, err := h.ReadFile("demo-1.0.0/Cargo.toml")
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(string(content)).To(Equal("[package]\n"))

		_, ok, err = h.ReadFile("nope")
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})

	It("reports ok=false for an unknown name", func() {
		st := testutil.OpenTempStore(GinkgoT())
		bs := NewBlobStore(st)
		_, ok, err := bs.GetArchive(crate.Spec{Name: "nope", Version: "0.0.0"})
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})

	It("retrieves an opaquely-stored archive verbatim instead of panicking", func() {
		st := testutil.OpenTempStore(GinkgoT())

		spec := crate.Spec{Name: "weird", Version: "0.1.0"}
		archive := testutil.BuildArchive(GinkgoT(), map[string][]byte{
			"weird-0.1.0/Cargo.toml": []byte("[package]\nname = \"weird\"\n"),
		})
		populateOpaque(st, spec, archive)

		bs := NewBlobStore(st)
		got, ok, err := bs.GetArchive(spec)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(archive))
	})

	It("opens a Handle over an opaquely-stored archive", func() {
		st := testutil.OpenTempStore(GinkgoT())

		spec := crate.Spec{Name: "weird", Version: "0.1.0"}
		archive := testutil.BuildArchive(GinkgoT(), map[string][]byte{
			"weird-0.1.0/Cargo.toml": []byte("[package]\nname = \"weird\"\n"),
		})
		populateOpaque(st, spec, archive)

		bs := NewBlobStore(st)
		h, ok, err := bs.OpenHandle(spec)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(h.ListFiles()).To(Equal([]string{"weird-0.1.0/Cargo.toml"}))

		content, ok, err := h.ReadFile("weird-0.1.0/Cargo.toml")
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(string(content)).To(Equal("[package]\nname = \"weird\"\n"))
	})
})

var _ = Describe("Overlay", func() {
	It("falls back to the secondary source when the primary has no entry", func() {
		primaryDir, fallbackDir := GinkgoT().TempDir(), GinkgoT().TempDir()
		spec := crate.Spec{Name: "demo", Version: "1.0.0"}
		archive := testutil.BuildArchive(GinkgoT(), map[string][]byte{"demo-1.0.0/a": []byte("x")})

		Expect(os.WriteFile(filepath.Join(fallbackDir, spec.FileName()), archive, 0o644)).To(BeNil())

		ov := NewOverlay(NewFlatCache(primaryDir), NewFlatCache(fallbackDir))
		got, ok, err := ov.GetArchive(spec)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(archive))
	})

	It("prefers the primary source when both have an entry", func() {
		primaryDir, fallbackDir := GinkgoT().TempDir(), GinkgoT().TempDir()
		spec := crate.Spec{Name: "demo", Version: "1.0.0"}
		primaryArchive := testutil.BuildArchive(GinkgoT(), map[string][]byte{"demo-1.0.0/a": []byte("primary")})
		fallbackArchive := testutil.BuildArchive(GinkgoT(), map[string][]byte{"demo-1.0.0/a": []byte("fallback")})

		Expect(os.WriteFile(filepath.Join(primaryDir, spec.FileName()), primaryArchive, 0o644)).To(BeNil())
		Expect(os.WriteFile(filepath.Join(fallbackDir, spec.FileName()), fallbackArchive, 0o644)).To(BeNil())

		ov := NewOverlay(NewFlatCache(primaryDir), NewFlatCache(fallbackDir))
		got, ok, err := ov.GetArchive(spec)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(primaryArchive))
	})

	It("reports ok=false when neither source has the archive", func() {
		ov := NewOverlay(NewFlatCache(GinkgoT().TempDir()), NewFlatCache(GinkgoT().TempDir()))
		_, ok, err := ov.GetArchive(crate.Spec{Name: "nope", Version: "0.0.0"})
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})
})
