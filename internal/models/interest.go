package models

import "time"

// Interest is an investor's expressed intent toward a specific proposal.
// All fields are immutable; withdrawing an offer deletes the record.
// There is no uniqueness constraint: the same investor may record several
// interests in the same proposal and each one counts.
type Interest struct {
	ID               string    `json:"id"`
	InvestorID       string    `json:"investorId"`
	ProposalID       string    `json:"proposalId"`
	InvestmentAmount float64   `json:"investmentAmount"`
	CreatedAt        time.Time `json:"createdAt"`
}
