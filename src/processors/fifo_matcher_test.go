package processors

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/username/cryptotax/src/models"
)

func match(policy MatchPolicy, txs ...models.Transaction) MatchResult {
	return NewFIFOMatcher(policy).Match(ClassifyAll(NewKeywordClassifier(), txs))
}

func TestFIFOMatchesOldestLot(t *testing.T) {
	g := NewGomegaWithT(t)

	res := match(PolicyWhole,
		receive("A1", day0, "ETH", "1", "100"),
		receive("A2", day0.AddDate(0, 0, 10), "ETH", "1", "200"),
		send("D1", day0.AddDate(0, 0, 20), "ETH", "1", "150"),
	)

	g.Expect(res.Events).To(HaveLen(1))
	ev := res.Events[0]
	g.Expect(ev.LotID).To(Equal("A1"))
	g.Expect(ev.GainUSD.Equal(d("50"))).To(BeTrue(), ev.GainUSD.String())
	g.Expect(ev.HoldingPeriodDays).To(Equal(20))
	g.Expect(ev.Term).To(Equal(models.TermShort))
	g.Expect(res.OpenLots["ETH"]).To(HaveLen(1))
	g.Expect(res.OpenLots["ETH"][0].TransactionID).To(Equal("A2"))
	g.Expect(res.Skipped).To(BeEmpty())
}

func TestTermBoundary(t *testing.T) {
	g := NewGomegaWithT(t)

	for _, tc := range []struct {
		days int
		term models.Term
	}{
		{364, models.TermShort},
		{365, models.TermShort},
		{366, models.TermLong},
		{800, models.TermLong},
	} {
		res := match(PolicyWhole,
			receive("A", day0, "BTC", "1", "100"),
			send("D", day0.AddDate(0, 0, tc.days), "BTC", "1", "100"),
		)
		g.Expect(res.Events).To(HaveLen(1))
		g.Expect(res.Events[0].HoldingPeriodDays).To(Equal(tc.days))
		g.Expect(res.Events[0].Term).To(Equal(tc.term), "holding %d days", tc.days)
	}
}

func TestHoldingPeriodCountsWholeDays(t *testing.T) {
	g := NewGomegaWithT(t)
	acquired := day0.Add(18 * time.Hour)
	g.Expect(HoldingPeriodDays(acquired, day0.AddDate(0, 0, 1))).To(Equal(0))
	g.Expect(HoldingPeriodDays(acquired, day0.AddDate(0, 0, 1).Add(18*time.Hour))).To(Equal(1))
	g.Expect(HoldingPeriodDays(date("2023-01-01"), date("2023-06-01"))).To(Equal(151))
}

func TestUnmatchedDisposalIsSkipped(t *testing.T) {
	g := NewGomegaWithT(t)

	for _, policy := range []MatchPolicy{PolicyWhole, PolicySplit} {
		res := match(policy,
			receive("A", day0, "BTC", "1", "100"),
			send("D", day0.AddDate(0, 0, 1), "ETH", "1", "150"),
		)
		g.Expect(res.Events).To(BeEmpty())
		g.Expect(res.Events).NotTo(BeNil())
		g.Expect(res.Skipped).To(ConsistOf(models.SkippedEvent{
			TransactionID: "D",
			Asset:         "ETH",
			OccurredAt:    day0.AddDate(0, 0, 1),
			Reason:        models.SkipNoMatchingLot,
		}))
	}
}

func TestAssetsAreMatchedIndependently(t *testing.T) {
	g := NewGomegaWithT(t)

	res := match(PolicyWhole,
		receive("E1", day0, "ETH", "1", "1000"),
		receive("B1", day0.AddDate(0, 0, 1), "BTC", "1", "20000"),
		send("B2", day0.AddDate(0, 0, 2), "BTC", "1", "21000"),
		send("E2", day0.AddDate(0, 0, 3), "ETH", "1", "900"),
	)
	g.Expect(res.Events).To(HaveLen(2))
	g.Expect(res.Events[0].LotID).To(Equal("B1"))
	g.Expect(res.Events[0].GainUSD.Equal(d("1000"))).To(BeTrue())
	g.Expect(res.Events[1].LotID).To(Equal("E1"))
	g.Expect(res.Events[1].GainUSD.Equal(d("-100"))).To(BeTrue())
}

func TestWholePolicyIgnoresAmountMismatch(t *testing.T) {
	g := NewGomegaWithT(t)

	res := match(PolicyWhole,
		receive("A1", day0, "ETH", "2", "2000"),
		receive("A2", day0.AddDate(0, 0, 1), "ETH", "2", "3000"),
		send("D1", day0.AddDate(0, 0, 2), "ETH", "0.5", "600"),
		send("D2", day0.AddDate(0, 0, 3), "ETH", "0.5", "700"),
	)
	g.Expect(res.Events).To(HaveLen(2))
	g.Expect(res.Events[0].CostBasisUSD.Equal(d("2000"))).To(BeTrue())
	g.Expect(res.Events[0].AmountDisposed.Equal(d("0.5"))).To(BeTrue())
	g.Expect(res.Events[1].CostBasisUSD.Equal(d("3000"))).To(BeTrue())
	g.Expect(res.OpenLots["ETH"]).To(BeEmpty())
}

func TestSplitPolicyProratesAcrossLots(t *testing.T) {
	g := NewGomegaWithT(t)

	res := match(PolicySplit,
		receive("A1", day0, "ETH", "1", "1000"),
		receive("A2", day0.AddDate(0, 0, 10), "ETH", "2", "4000"),
		send("D1", day0.AddDate(0, 0, 20), "ETH", "0.5", "750"),
		send("D2", day0.AddDate(0, 0, 30), "ETH", "1.5", "3000"),
	)

	g.Expect(res.Events).To(HaveLen(3))

	// D1 takes half of A1.
	g.Expect(res.Events[0].LotID).To(Equal("A1"))
	g.Expect(res.Events[0].AmountDisposed.Equal(d("0.5"))).To(BeTrue())
	g.Expect(res.Events[0].CostBasisUSD.Equal(d("500"))).To(BeTrue())
	g.Expect(res.Events[0].GainUSD.Equal(d("250"))).To(BeTrue())

	// D2 finishes A1 then dips into A2.
	g.Expect(res.Events[1].LotID).To(Equal("A1"))
	g.Expect(res.Events[1].AmountDisposed.Equal(d("0.5"))).To(BeTrue())
	g.Expect(res.Events[1].ProceedsUSD.Equal(d("1000"))).To(BeTrue())
	g.Expect(res.Events[1].CostBasisUSD.Equal(d("500"))).To(BeTrue())
	g.Expect(res.Events[2].LotID).To(Equal("A2"))
	g.Expect(res.Events[2].AmountDisposed.Equal(d("1"))).To(BeTrue())
	g.Expect(res.Events[2].ProceedsUSD.Equal(d("2000"))).To(BeTrue())
	g.Expect(res.Events[2].CostBasisUSD.Equal(d("2000"))).To(BeTrue())

	open := res.OpenLots["ETH"]
	g.Expect(open).To(HaveLen(1))
	g.Expect(open[0].Remaining.Equal(d("1"))).To(BeTrue())
	g.Expect(open[0].RemainingCost.Equal(d("2000"))).To(BeTrue())
	g.Expect(open[0].Amount.Equal(d("2"))).To(BeTrue())
	g.Expect(res.Skipped).To(BeEmpty())
}

func TestSplitPolicyReportsInsufficientLots(t *testing.T) {
	g := NewGomegaWithT(t)

	res := match(PolicySplit,
		receive("A1", day0, "BTC", "1", "100"),
		send("D1", day0.AddDate(0, 0, 1), "BTC", "3", "600"),
	)
	g.Expect(res.Events).To(HaveLen(1))
	g.Expect(res.Events[0].AmountDisposed.Equal(d("1"))).To(BeTrue())
	g.Expect(res.Events[0].ProceedsUSD.Equal(d("200"))).To(BeTrue())
	g.Expect(res.Skipped).To(HaveLen(1))
	g.Expect(res.Skipped[0].Reason).To(Equal(models.SkipInsufficientLots))
}

func TestSplitPolicyZeroAmountDisposalTakesHeadLot(t *testing.T) {
	g := NewGomegaWithT(t)

	res := match(PolicySplit,
		receive("A1", day0, "ETH", "1", "100"),
		receive("A2", day0.AddDate(0, 0, 1), "ETH", "1", "200"),
		send("D1", day0.AddDate(0, 0, 2), "ETH", "0", "150"),
	)
	g.Expect(res.Events).To(HaveLen(1))
	g.Expect(res.Events[0].LotID).To(Equal("A1"))
	g.Expect(res.Events[0].GainUSD.Equal(d("50"))).To(BeTrue())
	g.Expect(res.OpenLots["ETH"]).To(HaveLen(1))
}

func TestMatcherKeepsNoStateBetweenCalls(t *testing.T) {
	g := NewGomegaWithT(t)
	m := NewFIFOMatcher(PolicyWhole)
	c := NewKeywordClassifier()

	first := m.Match(ClassifyAll(c, []models.Transaction{receive("A", day0, "ETH", "1", "100")}))
	g.Expect(first.OpenLots["ETH"]).To(HaveLen(1))

	second := m.Match(ClassifyAll(c, []models.Transaction{send("D", day0.AddDate(0, 0, 1), "ETH", "1", "150")}))
	g.Expect(second.Events).To(BeEmpty())
	g.Expect(second.Skipped).To(HaveLen(1))
}

func TestParseMatchPolicy(t *testing.T) {
	g := NewGomegaWithT(t)

	p, err := ParseMatchPolicy(" Split ")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(p).To(Equal(PolicySplit))

	p, err = ParseMatchPolicy("")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(p).To(Equal(PolicyWhole))

	_, err = ParseMatchPolicy("lifo")
	g.Expect(err).To(HaveOccurred())
}
