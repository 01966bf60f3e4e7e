package store

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libdig "github.com/nabbar/cratestore/digest"
	liberr "github.com/nabbar/cratestore/errors"
)

func openTemp() (*Store, string) {
	dir := GinkgoT().TempDir()
	path := filepath.Join(dir, "blobs.store")

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	Expect(err).To(BeNil())
	s, serr := Open(f)
	Expect(serr).To(BeNil())
	return s, path
}

var _ = Describe("a freshly opened store", func() {
	It("writes the header and leaves the index region empty", func() {
		s, path := openTemp()
		Expect(s.indexOffset).To(BeNumerically("==", HeaderSize))
		Expect(s.Close()).To(BeNil())

		f2, err := os.OpenFile(path, os.O_RDWR, 0o644)
		Expect(err).To(BeNil())
		s2, serr := Open(f2)
		Expect(serr).To(BeNil())

		Expect(s2.indexOffset).To(BeNumerically("==", HeaderSize))
		Expect(s2.byDigest).To(BeEmpty())
		Expect(s2.byName).To(BeEmpty())
		Expect(s2.multiByLeaf).To(BeEmpty())
	})

	It("rejects a file that does not start with the store's magic", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "bad.store")
		Expect(os.WriteFile(path, make([]byte, HeaderSize), 0o644)).To(BeNil())

		f, err := os.OpenFile(path, os.O_RDWR, 0o644)
		Expect(err).To(BeNil())

		_, serr := Open(f)
		Expect(serr).ToNot(BeNil())
		Expect(serr.IsCode(liberr.BadMagic)).To(BeTrue())
	})
})

var _ = Describe("Insert and Get", func() {
	var s *Store

	BeforeEach(func() {
		s, _ = openTemp()
		DeferCleanup(func() { _ = s.Close() })
	})

	It("dedups a digest already present", func() {
		d := libdig.Sum([]byte("payload"))

		ok, err := s.Insert(d, []byte("payload"))
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())

		ok2, err2 := s.Insert(d, []byte("payload"))
		Expect(err2).To(BeNil())
		Expect(ok2).To(BeFalse())

		Expect(s.Has(d)).To(BeTrue())

		got, found, gerr := s.Get(d)
		Expect(gerr).To(BeNil())
		Expect(found).To(BeTrue())
		Expect(string(got)).To(Equal("payload"))
	})

	It("reports not found for an absent digest", func() {
		_, found, err := s.Get(libdig.Sum([]byte("absent")))
		Expect(err).To(BeNil())
		Expect(found).To(BeFalse())
	})
})

var _ = Describe("name and multi-blob indices", func() {
	var s *Store

	BeforeEach(func() {
		s, _ = openTemp()
		DeferCleanup(func() { _ = s.Close() })
	})

	It("resolves a name to the digest it was put under", func() {
		d := libdig.Sum([]byte("manifest bytes"))
		s.PutName("serde-1.0.188.crate", d)

		got, ok := s.ResolveName("serde-1.0.188.crate")
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(d))
	})

	It("resolves a leaf digest to its covering multi-blob digest", func() {
		leaf := libdig.Sum([]byte("leaf"))
		multi := libdig.Sum([]byte("multi"))
		s.PutMulti(leaf, multi)

		got, ok := s.MultiBlobFor(leaf)
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(multi))
	})
})

var _ = Describe("flushing and reopening a store", func() {
	It("preserves blobs, names, and multi-blob links across a close/reopen cycle", func() {
		s, path := openTemp()

		d1 := libdig.Sum([]byte("one"))
		d2 := libdig.Sum([]byte("two"))
		_, err := s.Insert(d1, []byte("one"))
		Expect(err).To(BeNil())
		_, err = s.Insert(d2, []byte("two"))
		Expect(err).To(BeNil())
		s.PutName("pkg-1.0.0.crate", d1)
		s.PutMulti(d2, d1)

		Expect(s.Close()).To(BeNil())

		f, err := os.OpenFile(path, os.O_RDWR, 0o644)
		Expect(err).To(BeNil())
		s2, serr := Open(f)
		Expect(serr).To(BeNil())
		DeferCleanup(func() { _ = s2.Close() })

		Expect(s2.Has(d1)).To(BeTrue())
		Expect(s2.Has(d2)).To(BeTrue())

		got, found, gerr := s2.Get(d1)
		Expect(gerr).To(BeNil())
		Expect(found).To(BeTrue())
		Expect(string(got)).To(Equal("one"))

		name, ok := s2.ResolveName("pkg-1.0.0.crate")
		Expect(ok).To(BeTrue())
		Expect(name).To(Equal(d1))

		multi, ok := s2.MultiBlobFor(d2)
		Expect(ok).To(BeTrue())
		Expect(multi).To(Equal(d1))
	})
})
