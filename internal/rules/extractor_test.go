package rules

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"receiptd/internal/entity"
)

func TestRules(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rules Suite")
}

var _ = Describe("Extractor", func() {
	var (
		ex   *Extractor
		text string
		rec  entity.Receipt
	)

	BeforeEach(func() {
		ex = NewExtractor(nil)
	})

	JustBeforeEach(func() {
		rec = ex.Extract(text)
	})

	When("given free-form prose about a purchase", func() {
		BeforeEach(func() {
			text = "i went costco yesterday and bought a pack of socks for 4.50 and a greeting card for 2.30, paid 1.30 tax with my debit card"
		})

		It("recognizes the retailer", func() {
			Expect(rec.StoreName).To(Equal("COSTCO"))
		})

		It("collects both purchase amounts as items", func() {
			Expect(rec.Items).To(HaveLen(2))
			Expect(rec.Items[0].ItemPrice).To(Equal(4.50))
			Expect(rec.Items[1].ItemPrice).To(Equal(2.30))
		})

		It("claims the amount preceding the tax keyword", func() {
			Expect(rec.Tax).NotTo(BeNil())
			Expect(*rec.Tax).To(Equal(1.30))
		})

		It("derives subtotal from items and total from subtotal plus tax", func() {
			Expect(rec.Subtotal).NotTo(BeNil())
			Expect(*rec.Subtotal).To(Equal(6.80))
			Expect(rec.Total).NotTo(BeNil())
			Expect(*rec.Total).To(Equal(8.10))
		})

		It("finds the payment method", func() {
			Expect(rec.PaymentMethod).To(Equal("debit card"))
		})

		It("marks the deterministic path", func() {
			Expect(rec.ExtractionPath).To(Equal(entity.PathDeterministic))
		})
	})

	When("given prose with single-fraction-digit amounts", func() {
		BeforeEach(func() {
			text = "i went costco bought maybe 4.5 and then 2.30 i think tax 1.3 used debit card probably"
		})

		It("recognizes the retailer", func() {
			Expect(rec.StoreName).To(Equal("COSTCO"))
		})

		It("collects the one- and two-digit fraction amounts as items", func() {
			Expect(rec.Items).To(HaveLen(2))
			Expect(rec.Items[0].ItemPrice).To(Equal(4.5))
			Expect(rec.Items[1].ItemPrice).To(Equal(2.30))
		})

		It("names the unlabeled amounts by position", func() {
			Expect(rec.Items[0].ItemName).To(Equal("Item 1"))
			Expect(rec.Items[1].ItemName).To(Equal("Item 2"))
		})

		It("claims the amount trailing the tax keyword", func() {
			Expect(rec.Tax).NotTo(BeNil())
			Expect(*rec.Tax).To(Equal(1.3))
		})

		It("finds the payment method", func() {
			Expect(rec.PaymentMethod).To(Equal("debit card"))
		})
	})

	When("given a printed totals block with a rate", func() {
		BeforeEach(func() {
			text = "SUBTOTAL $9.88\nTAX 8.0% $0.79\nTOTAL $10.67"
		})

		It("assigns each keyword its trailing amount", func() {
			Expect(rec.Subtotal).NotTo(BeNil())
			Expect(*rec.Subtotal).To(Equal(9.88))
			Expect(rec.Tax).NotTo(BeNil())
			Expect(*rec.Tax).To(Equal(0.79))
			Expect(rec.Total).NotTo(BeNil())
			Expect(*rec.Total).To(Equal(10.67))
		})

		It("treats the percent-suffixed number as a rate, not an amount", func() {
			Expect(*rec.Tax).NotTo(Equal(8.0))
		})

		It("produces an arithmetically consistent record", func() {
			Expect(rec.Consistent()).To(BeTrue())
		})

		It("leaves the items empty", func() {
			Expect(rec.Items).To(BeEmpty())
		})
	})

	When("given a register-style receipt", func() {
		BeforeEach(func() {
			text = "WALMART SUPERCENTER\n08/15/2026 14:32\nCashier: Dana\nMILK 2% GAL 3.48\nBREAD WHT 2.12\nSUBTOTAL 5.60\nTAX 0.45\nTOTAL 6.05\nPAID CASH"
		})

		It("names items from their line text", func() {
			Expect(rec.Items).To(HaveLen(2))
			Expect(rec.Items[0].ItemName).To(Equal("MILK 2% GAL"))
			Expect(rec.Items[0].ItemPrice).To(Equal(3.48))
			Expect(rec.Items[1].ItemName).To(Equal("BREAD WHT"))
		})

		It("normalizes the date and time", func() {
			Expect(rec.Date).To(Equal("2026-08-15"))
			Expect(rec.Time).To(Equal("14:32"))
		})

		It("reads the cashier", func() {
			Expect(rec.Cashier).To(Equal("Dana"))
		})

		It("does not mistake the cashier line for a cash payment", func() {
			Expect(rec.PaymentMethod).To(Equal("cash"))
		})

		It("assigns the money fields", func() {
			Expect(*rec.Subtotal).To(Equal(5.60))
			Expect(*rec.Tax).To(Equal(0.45))
			Expect(*rec.Total).To(Equal(6.05))
		})
	})

	When("the keyword stands alone above its amount", func() {
		BeforeEach(func() {
			text = "SUBTOTAL\n12.00\nTAX 0.96\nTOTAL\n12.96"
		})

		It("lets same-line claims settle before pending keywords take tokens", func() {
			Expect(*rec.Tax).To(Equal(0.96))
			Expect(*rec.Subtotal).To(Equal(12.00))
			Expect(*rec.Total).To(Equal(12.96))
		})
	})

	When("given text with nothing recognizable", func() {
		BeforeEach(func() {
			text = "nothing to see here"
		})

		It("still returns a record", func() {
			Expect(rec.ExtractionPath).To(Equal(entity.PathDeterministic))
			Expect(rec.Items).To(BeEmpty())
		})

		It("keeps money fields absent instead of zero", func() {
			Expect(rec.Subtotal).To(BeNil())
			Expect(rec.Tax).To(BeNil())
			Expect(rec.Total).To(BeNil())
		})
	})

	When("amounts are negative or change lines", func() {
		BeforeEach(func() {
			text = "STORE\nWIDGET 5.00\nCASH TEND 20.00\nCHANGE DUE 15.00\nDISCOUNT -2.00"
		})

		It("skips tender, change and negative amounts as items", func() {
			Expect(rec.Items).To(HaveLen(1))
			Expect(rec.Items[0].ItemName).To(Equal("WIDGET"))
		})
	})

	Describe("properties", func() {
		inputs := []string{
			"SUBTOTAL $9.88\nTAX 8.0% $0.79\nTOTAL $10.67",
			"i went costco yesterday and bought a pack of socks for 4.50 and a greeting card for 2.30, paid 1.30 tax with my debit card",
			"WALMART\nTOTAL 12.34",
			"",
		}

		It("is deterministic for identical input", func() {
			for _, in := range inputs {
				a := ex.Extract(in)
				b := ex.Extract(in)
				Expect(a).To(Equal(b))
			}
		})

		It("never yields negative money or out-of-range confidence", func() {
			for _, in := range inputs {
				r := ex.Extract(in)
				for _, v := range []*float64{r.Subtotal, r.Tax, r.Total} {
					if v != nil {
						Expect(*v).To(BeNumerically(">=", 0))
					}
				}
				for _, it := range r.Items {
					Expect(it.ItemPrice).To(BeNumerically(">=", 0))
				}
				Expect(r.ConfidenceScore).To(BeNumerically(">=", 0))
				Expect(r.ConfidenceScore).To(BeNumerically("<=", maxConfidence))
			}
		})
	})
})

var _ = Describe("NormalizeDate", func() {
	It("accepts ISO, slash and US orderings", func() {
		Expect(NormalizeDate("2026-08-15")).To(Equal("2026-08-15"))
		Expect(NormalizeDate("2026/8/15")).To(Equal("2026-08-15"))
		Expect(NormalizeDate("08/15/2026")).To(Equal("2026-08-15"))
		Expect(NormalizeDate("31/12/2026")).To(Equal("2026-12-31"))
	})

	It("returns empty for garbage", func() {
		Expect(NormalizeDate("not a date")).To(Equal(""))
		Expect(NormalizeDate("")).To(Equal(""))
	})
})

var _ = Describe("NormalizeTime", func() {
	It("renders 24-hour HH:MM", func() {
		Expect(NormalizeTime("14:32")).To(Equal("14:32"))
		Expect(NormalizeTime("2:32 pm")).To(Equal("14:32"))
		Expect(NormalizeTime("9:05")).To(Equal("09:05"))
	})

	It("returns empty for garbage", func() {
		Expect(NormalizeTime("later")).To(Equal(""))
	})
})
