package pipeline

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/cratestore/crate"
	libdig "github.com/nabbar/cratestore/digest"
	"github.com/nabbar/cratestore/internal/testutil"
)

var _ = Describe("Pipeline.Run", func() {
	It("stores a reconstructible archive in decomposed form", func() {
		st := testutil.OpenTempStore(GinkgoT())

		archive := testutil.BuildArchive(GinkgoT(), map[string][]byte{
			"Cargo.toml": []byte("[package]\nname = \"demo\"\n"),
		})
		expected := libdig.Sum(archive)

		items := make(chan Item, 1)
		items <- Item{Spec: crate.Spec{Name: "demo", Version: "0.1.0"}, Archive: archive, ExpectedDigest: expected}
		close(items)

		p := New(st, Config{Workers: 2, QueueSize: 8})
		stats, err := p.Run(context.Background(), items)
		Expect(err).To(BeNil())
		Expect(stats.Decomposed).To(Equal(1))
		Expect(stats.Opaque).To(Equal(0))

		manifestDigest, ok := st.ResolveName("demo-0.1.0.crate")
		Expect(ok).To(BeTrue())
		Expect(st.Has(manifestDigest)).To(BeTrue())
	})

	It("falls back to opaque storage when the reconstructed digest does not match", func() {
		st := testutil.OpenTempStore(GinkgoT())

		archive := testutil.BuildArchive(GinkgoT(), map[string][]byte{"a.txt": []byte("hi")})
		wrongDigest := libdig.Sum([]byte("not the archive"))

		items := make(chan Item, 1)
		items <- Item{Spec: crate.Spec{Name: "bad", Version: "1.0.0"}, Archive: archive, ExpectedDigest: wrongDigest}
		close(items)

		p := New(st, Config{Workers: 1, QueueSize: 4})
		stats, err := p.Run(context.Background(), items)
		Expect(err).To(BeNil())
		Expect(stats.Opaque).To(Equal(1))
		Expect(stats.Decomposed).To(Equal(0))

		digest, ok := st.ResolveName("bad-1.0.0.crate")
		Expect(ok).To(BeTrue())
		Expect(digest).To(Equal(libdig.Sum(archive)))
	})

	It("dedups identical archives ingested under different versions", func() {
		st := testutil.OpenTempStore(GinkgoT())

		archive := testutil.BuildArchive(GinkgoT(), map[string][]byte{"lib.rs": []byte("fn main() {}\n")})
		expected := libdig.Sum(archive)

		items := make(chan Item, 2)
		items <- Item{Spec: crate.Spec{Name: "dup", Version: "1.0.0"}, Archive: archive, ExpectedDigest: expected}
		items <- Item{Spec: crate.Spec{Name: "dup", Version: "1.0.1"}, Archive: archive, ExpectedDigest: expected}
		close(items)

		p := New(st, Config{Workers: 2, QueueSize: 8})
		stats, err := p.Run(context.Background(), items)
		Expect(err).To(BeNil())
		Expect(stats.Decomposed).To(Equal(2))

		d1, ok1 := st.ResolveName("dup-1.0.0.crate")
		d2, ok2 := st.ResolveName("dup-1.0.1.crate")
		Expect(ok1).To(BeTrue())
		Expect(ok2).To(BeTrue())
		Expect(d1).To(Equal(d2))
	})
})
