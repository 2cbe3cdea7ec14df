package models

import "github.com/shopspring/decimal"

// TaxReport is the per-user, per-year report. Field names are consumed by
// presentation code and must not change.
type TaxReport struct {
	TaxYear         int              `json:"taxYear"`
	Summary         ReportSummary    `json:"summary"`
	CapitalGains    CapitalGains     `json:"capitalGains"`
	OrdinaryIncome  OrdinaryIncome   `json:"ordinaryIncome"`
	Deductions      Deductions       `json:"deductions"`
	Forms           FormRequirements `json:"forms"`
	Recommendations []string         `json:"recommendations"`
}

type ReportSummary struct {
	TotalTransactions     int             `json:"totalTransactions"`
	TaxableEvents         int             `json:"taxableEvents"`
	ShortTermCapitalGains decimal.Decimal `json:"shortTermCapitalGains"`
	LongTermCapitalGains  decimal.Decimal `json:"longTermCapitalGains"`
	OrdinaryIncome        decimal.Decimal `json:"ordinaryIncome"`
	TotalTaxableIncome    decimal.Decimal `json:"totalTaxableIncome"`
}

type CapitalGains struct {
	ShortTerm GainBucket `json:"shortTerm"`
	LongTerm  GainBucket `json:"longTerm"`
}

type GainBucket struct {
	TotalGain decimal.Decimal `json:"totalGain"`
	Events    []TaxEvent      `json:"events"`
}

// OrdinaryIncome buckets. Forks is reported but not counted in Total.
type OrdinaryIncome struct {
	Mining   decimal.Decimal `json:"mining"`
	Staking  decimal.Decimal `json:"staking"`
	Airdrops decimal.Decimal `json:"airdrops"`
	Forks    decimal.Decimal `json:"forks"`
	Total    decimal.Decimal `json:"total"`
}

type Deductions struct {
	TransactionFees decimal.Decimal `json:"transactionFees"`
	Total           decimal.Decimal `json:"total"`
}

type FormRequirements struct {
	Form8949Required bool `json:"form8949Required"`
	ScheduleD        bool `json:"scheduleD"`
	Schedule1        bool `json:"schedule1"`
}
