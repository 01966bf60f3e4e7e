package pipeline

import (
	"bytes"
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/cratestore/crate"
	libdig "github.com/nabbar/cratestore/digest"
	"github.com/nabbar/cratestore/internal/testutil"
	"github.com/nabbar/cratestore/multiblob"
)

// similarSourceLines renders n lines that look incompressible on their
// own (each derived from a distinct SHA-256 digest) so that two nearly
// identical versions compress, separately, to roughly their full size —
// only a diff-encoded chain can shrink the second version down to the
// size of its actual edit.
func similarSourceLines(n int, seedSuffix string) string {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		line := libdig.Sum([]byte(fmt.Sprintf("line-%d-%s", i, seedSuffix)))
		fmt.Fprintf(&buf, "%s\n", line.Hex())
	}
	return buf.String()
}

var _ = Describe("BuildChainsForSpecs", func() {
	It("materializes a multi-blob covering two near-identical versions of one package", func() {
		st := testutil.OpenTempStore(GinkgoT())

		base := similarSourceLines(300, "base")
		// Version two changes only its last handful of lines, keeping
		// everything else byte-identical.
		v2 := base[:len(base)-5*65] + similarSourceLines(5, "changed")

		nameV1, nameV2 := "demo", "demo"
		v1Archive := testutil.BuildArchive(GinkgoT(), map[string][]byte{
			"demo-0.1.0/src/lib.rs": []byte(base),
		})
		v2Archive := testutil.BuildArchive(GinkgoT(), map[string][]byte{
			"demo-0.1.1/src/lib.rs": []byte(v2),
		})

		specV1 := crate.Spec{Name: nameV1, Version: "0.1.0"}
		specV2 := crate.Spec{Name: nameV2, Version: "0.1.1"}

		items := make(chan Item, 2)
		items <- Item{Spec: specV1, Archive: v1Archive, ExpectedDigest: libdig.Sum(v1Archive)}
		items <- Item{Spec: specV2, Archive: v2Archive, ExpectedDigest: libdig.Sum(v2Archive)}
		close(items)

		p := New(st, Config{Workers: 2, QueueSize: 8})
		stats, err := p.Run(context.Background(), items)
		Expect(err).To(BeNil())
		Expect(stats.Decomposed).To(Equal(2))

		leafV1 := libdig.Sum([]byte(base))
		leafV2 := libdig.Sum([]byte(v2))
		Expect(leafV1).ToNot(Equal(leafV2))

		built, berr := p.BuildChainsForSpecs([]crate.Spec{specV1, specV2})
		Expect(berr).To(BeNil())
		Expect(built).To(BeNumerically(">=", 1))

		multiDigest, ok := st.MultiBlobFor(leafV2)
		Expect(ok).To(BeTrue())

		compressed, found, gerr := st.Get(multiDigest)
		Expect(gerr).To(BeNil())
		Expect(found).To(BeTrue())

		raw, derr := DecompressBlob(compressed)
		Expect(derr).To(BeNil())

		mb, merr := multiblob.Deserialize(bytes.NewReader(raw))
		Expect(merr).To(BeNil())

		text, ok := mb.GetBlob(leafV2)
		Expect(ok).To(BeTrue())
		Expect(text).To(Equal(v2))
	})

	It("skips specs that resolve to an opaquely-stored archive", func() {
		st := testutil.OpenTempStore(GinkgoT())

		archive := testutil.BuildArchive(GinkgoT(), map[string][]byte{"a.txt": []byte("hi")})
		wrongDigest := libdig.Sum([]byte("not the archive"))

		items := make(chan Item, 1)
		spec := crate.Spec{Name: "bad", Version: "1.0.0"}
		items <- Item{Spec: spec, Archive: archive, ExpectedDigest: wrongDigest}
		close(items)

		p := New(st, Config{Workers: 1, QueueSize: 4})
		_, err := p.Run(context.Background(), items)
		Expect(err).To(BeNil())

		built, berr := p.BuildChainsForSpecs([]crate.Spec{spec})
		Expect(berr).To(BeNil())
		Expect(built).To(Equal(0))
	})
})
