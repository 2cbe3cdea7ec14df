package processors

import (
	"strings"

	"github.com/username/cryptotax/src/models"
)

type EventKind string

const (
	KindOrdinaryIncome EventKind = "ordinary_income"
	KindDisposal       EventKind = "disposal"
	KindAcquisition    EventKind = "acquisition"
	KindIgnored        EventKind = "ignored"
)

// Classification is the tagged result of classifying one transaction.
// Category is set only for KindOrdinaryIncome.
type Classification struct {
	Kind     EventKind
	Category models.IncomeCategory
}

type ClassifiedTransaction struct {
	Tx             models.Transaction
	Classification Classification
}

// IncomeRule marks a receive as ordinary income when its description
// contains Keyword, ignoring case.
type IncomeRule struct {
	Keyword  string
	Category models.IncomeCategory
}

// DefaultIncomeRules are checked in order; the first match wins.
var DefaultIncomeRules = []IncomeRule{
	{Keyword: "mining", Category: models.IncomeMining},
	{Keyword: "staking", Category: models.IncomeStaking},
	{Keyword: "airdrop", Category: models.IncomeAirdrop},
	{Keyword: "fork", Category: models.IncomeFork},
}

type KeywordClassifier struct {
	rules []IncomeRule
}

// NewKeywordClassifier builds a classifier from rules, or from
// DefaultIncomeRules when none are given.
func NewKeywordClassifier(rules ...IncomeRule) *KeywordClassifier {
	if len(rules) == 0 {
		rules = DefaultIncomeRules
	}
	normalized := make([]IncomeRule, 0, len(rules))
	for _, r := range rules {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" {
			continue
		}
		normalized = append(normalized, IncomeRule{Keyword: kw, Category: r.Category})
	}
	return &KeywordClassifier{rules: normalized}
}

// Classify checks income keywords on a receive before treating it as an
// acquisition.
func (c *KeywordClassifier) Classify(tx models.Transaction) Classification {
	switch strings.ToLower(tx.Type) {
	case models.TypeReceive:
		desc := strings.ToLower(tx.Description)
		for _, r := range c.rules {
			if strings.Contains(desc, r.Keyword) {
				return Classification{Kind: KindOrdinaryIncome, Category: r.Category}
			}
		}
		return Classification{Kind: KindAcquisition}
	case models.TypeSend, models.TypeSwap:
		return Classification{Kind: KindDisposal}
	default:
		return Classification{Kind: KindIgnored}
	}
}

// ClassifyAll classifies txs, preserving their order.
func ClassifyAll(c Classifier, txs []models.Transaction) []ClassifiedTransaction {
	out := make([]ClassifiedTransaction, len(txs))
	for i, tx := range txs {
		out[i] = ClassifiedTransaction{Tx: tx, Classification: c.Classify(tx)}
	}
	return out
}
