package topup_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	internal "github.com/thaiGO2003/DigiGO-sub000/internal"
	topupPkg "github.com/thaiGO2003/DigiGO-sub000/internal/topup"
)

func pendingWithCode(id int64, code string) *topupPkg.Topup {
	return &topupPkg.Topup{ID: id, MemoCode: code, Status: topupPkg.StatusPending}
}

var _ = Describe("NormalizeMemo", func() {
	It("should uppercase and strip all whitespace", func() {
		Expect(topupPkg.NormalizeMemo(" dh 5551\t2345 \n")).To(Equal("DH55512345"))
	})

	It("should leave punctuation alone", func() {
		Expect(topupPkg.NormalizeMemo("MBVCB.123-dh55512345")).To(Equal("MBVCB.123-DH55512345"))
	})
})

var _ = Describe("MatchPending", func() {
	Context("exact matching", func() {
		It("should match a memo that equals a pending code", func() {
			candidates := []*topupPkg.Topup{
				pendingWithCode(1, "DH55512345"),
				pendingWithCode(2, "DH99900001"),
			}

			matched, err := topupPkg.MatchPending(candidates, "DH55512345")
			Expect(err).To(BeNil())
			Expect(matched.ID).To(Equal(int64(1)))
		})

		It("should prefer the exact match over substring candidates", func() {
			// "AB123" exactly equals one code while containing the other.
			candidates := []*topupPkg.Topup{
				pendingWithCode(1, "AB12"),
				pendingWithCode(2, "AB123"),
			}

			matched, err := topupPkg.MatchPending(candidates, "AB123")
			Expect(err).To(BeNil())
			Expect(matched.ID).To(Equal(int64(2)))
		})
	})

	Context("substring matching", func() {
		It("should match a memo embedded in surrounding text", func() {
			candidates := []*topupPkg.Topup{pendingWithCode(1, "DH55512345")}

			matched, err := topupPkg.MatchPending(candidates, "FT2025 transfer DH55512345 from customer")
			Expect(err).To(BeNil())
			Expect(matched.ID).To(Equal(int64(1)))
		})

		It("should not count a shorter code that only appears inside a longer one", func() {
			candidates := []*topupPkg.Topup{
				pendingWithCode(1, "AB12"),
				pendingWithCode(2, "AB123"),
			}

			matched, err := topupPkg.MatchPending(candidates, "payment for AB123 today")
			Expect(err).To(BeNil())
			Expect(matched.ID).To(Equal(int64(2)))
		})

		It("should stay ambiguous when both codes appear standalone", func() {
			candidates := []*topupPkg.Topup{
				pendingWithCode(1, "AB12"),
				pendingWithCode(2, "AB123"),
			}

			_, err := topupPkg.MatchPending(candidates, "AB12 then AB123")
			Expect(err).To(MatchError(internal.ErrAmbiguousMatch))
		})
	})

	Context("refusals", func() {
		It("should refuse when nothing matches", func() {
			candidates := []*topupPkg.Topup{pendingWithCode(1, "DH55512345")}

			_, err := topupPkg.MatchPending(candidates, "no code here")
			Expect(err).To(MatchError(internal.ErrNoMatch))
		})

		It("should refuse an empty memo", func() {
			candidates := []*topupPkg.Topup{pendingWithCode(1, "DH55512345")}

			_, err := topupPkg.MatchPending(candidates, "   ")
			Expect(err).To(MatchError(internal.ErrNoMatch))
		})

		It("should refuse when two unrelated codes both appear", func() {
			candidates := []*topupPkg.Topup{
				pendingWithCode(1, "DH55512345"),
				pendingWithCode(2, "DH99900001"),
			}

			_, err := topupPkg.MatchPending(candidates, "DH55512345 DH99900001")
			Expect(err).To(MatchError(internal.ErrAmbiguousMatch))
		})

		It("should refuse with an empty candidate set", func() {
			_, err := topupPkg.MatchPending(nil, "DH55512345")
			Expect(err).To(MatchError(internal.ErrNoMatch))
		})
	})
})
