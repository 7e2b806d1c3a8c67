package models

import "time"

// InterestedInvestor is an interest enriched with the investor's directory
// profile and the title of the targeted proposal. It backs the business
// owner's "who wants in" view.
type InterestedInvestor struct {
	InterestID       string    `json:"interestId"`
	InvestorID       string    `json:"investorId"`
	InvestorName     string    `json:"investorName"`
	InvestorEmail    string    `json:"investorEmail"`
	InvestmentAmount float64   `json:"investmentAmount"`
	ProposalID       string    `json:"proposalId"`
	BusinessTitle    string    `json:"businessTitle"`
	CreatedAt        time.Time `json:"createdAt"`
}

// InvestorOffer is an interest from the investor's side, carrying the
// proposal title so the offer list is readable after the proposal is gone.
type InvestorOffer struct {
	InterestID       string    `json:"interestId"`
	ProposalID       string    `json:"proposalId"`
	BusinessTitle    string    `json:"businessTitle"`
	InvestmentAmount float64   `json:"investmentAmount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// DashboardSummary is the per-role activity card plus the cross-role
// proposal preview.
type DashboardSummary struct {
	Role            Role       `json:"role"`
	ProposalCount   int        `json:"proposalCount"`
	InterestCount   int        `json:"interestCount"`
	ProposalPreview []Proposal `json:"proposalPreview"`
}
