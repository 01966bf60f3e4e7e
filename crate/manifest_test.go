package crate

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libdig "github.com/nabbar/cratestore/digest"
	liberr "github.com/nabbar/cratestore/errors"
	libgz "github.com/nabbar/cratestore/gzip"
	libtar "github.com/nabbar/cratestore/tar"
)

func gzEnvelope(name *string, os byte) libgz.Envelope {
	return libgz.Envelope{Name: name, OS: os}
}

func sampleManifest(name *string) RecMetadata {
	var h1, h2 libtar.Header
	copy(h1[0:100], []byte("Cargo.toml"))
	copy(h2[0:100], []byte("src/lib.rs"))

	return RecMetadata{
		Envelope: gzEnvelope(name, 3),
		Entries: []entryMeta{
			{Header: h1, Digest: libdig.Sum([]byte("toml content"))},
			{Header: h2, Digest: libdig.Sum([]byte("rs content"))},
		},
	}
}

var _ = Describe("RecMetadata serialization", func() {
	var name string

	BeforeEach(func() {
		name = "serde-1.0.188.crate"
	})

	It("round-trips envelope name, OS byte, and entries", func() {
		m := sampleManifest(&name)

		var buf bytes.Buffer
		Expect(m.Serialize(&buf)).To(BeNil())

		got, derr := DeserializeManifest(&buf)
		Expect(derr).To(BeNil())

		Expect(got.Envelope.Name).ToNot(BeNil())
		Expect(*got.Envelope.Name).To(Equal(name))
		Expect(got.Envelope.OS).To(Equal(m.Envelope.OS))
		Expect(got.Entries).To(HaveLen(len(m.Entries)))
		for i := range m.Entries {
			Expect(got.Entries[i].Header).To(Equal(m.Entries[i].Header))
			Expect(got.Entries[i].Digest).To(Equal(m.Entries[i].Digest))
		}
	})

	It("round-trips a nil envelope name as the no-filename sentinel", func() {
		m := sampleManifest(nil)

		var buf bytes.Buffer
		Expect(m.Serialize(&buf)).To(BeNil())

		got, derr := DeserializeManifest(&buf)
		Expect(derr).To(BeNil())
		Expect(got.Envelope.Name).To(BeNil())
	})

	It("rejects a name length that exceeds the sane bound instead of panicking", func() {
		// The raw bytes of an opaquely-stored archive start with gzip's
		// magic plus flags, which a manifest parser reads as an
		// enormous big-endian name length: far past maxManifestNameLen
		// and not the no-filename sentinel either.
		raw := []byte{0x1f, 0x8b, 0x08, 0, 0, 0, 0, 0}

		_, derr := DeserializeManifest(bytes.NewReader(raw))
		Expect(derr).ToNot(BeNil())
	})
})

var _ = Describe("RecMetadata.FileList and Files", func() {
	It("lists entry names in manifest order", func() {
		m := sampleManifest(nil)
		Expect(m.FileList()).To(Equal([]string{"Cargo.toml", "src/lib.rs"}))
	})

	It("pairs each entry's path with its content digest", func() {
		m := sampleManifest(nil)
		files := m.Files()
		Expect(files).To(HaveLen(2))
		Expect(files[0].Path).To(Equal("Cargo.toml"))
		Expect(files[0].Digest).To(Equal(libdig.Sum([]byte("toml content"))))
		Expect(files[1].Path).To(Equal("src/lib.rs"))
		Expect(files[1].Digest).To(Equal(libdig.Sum([]byte("rs content"))))
	})
})

var _ = Describe("ManifestFromContentBlobs and ToContentBlobs", func() {
	It("produces a manifest whose entries resolve back to their content", func() {
		var h libtar.Header
		copy(h[0:100], []byte("a.txt"))

		cb := ContentBlobs{
			Envelope: gzEnvelope(nil, 3),
			Entries: []libtar.Entry{
				{Header: h, Content: []byte("hello")},
			},
		}

		m, blobs := ManifestFromContentBlobs(cb)
		Expect(m.Entries).To(HaveLen(1))
		Expect(blobs).To(HaveLen(1))
		Expect(m.Entries[0].Digest).To(Equal(libdig.Sum([]byte("hello"))))

		byDigest := map[libdig.Digest][]byte{blobs[0].Digest: blobs[0].Content}
		rebuilt, rerr := m.ToContentBlobs(func(d libdig.Digest) ([]byte, liberr.Error) {
			content, ok := byDigest[d]
			if !ok {
				return nil, liberr.CorruptRecord.Error(nil)
			}
			return content, nil
		})
		Expect(rerr).To(BeNil())
		Expect(rebuilt.Entries).To(HaveLen(1))
		Expect(rebuilt.Entries[0].Content).To(Equal([]byte("hello")))
	})
})
