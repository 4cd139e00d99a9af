package topup_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	topupPkg "github.com/thaiGO2003/DigiGO-sub000/internal/topup"
)

var _ = Describe("MemoGenerator", func() {
	It("should generate prefix plus eight digits", func() {
		gen := topupPkg.NewMemoGenerator("DH")

		for i := 0; i < 50; i++ {
			code, err := gen.Generate()
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(MatchRegexp(`^DH\d{8}$`))
		}
	})

	It("should zero-pad small draws to full width", func() {
		gen := topupPkg.NewMemoGenerator("X")

		for i := 0; i < 200; i++ {
			code, err := gen.Generate()
			Expect(err).ToNot(HaveOccurred())
			Expect(code).To(HaveLen(9))
		}
	})

	It("should rarely repeat", func() {
		gen := topupPkg.NewMemoGenerator("DH")

		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			code, err := gen.Generate()
			Expect(err).ToNot(HaveOccurred())
			seen[code] = true
		}
		// 100 draws from a 10^8 space collide with probability ~5e-5.
		Expect(len(seen)).To(BeNumerically(">", 95))
	})
})
