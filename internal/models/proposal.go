package models

import "time"

// Category is the fixed business category set for proposals.
type Category string

const (
	CategoryTechnology Category = "Technology"
	CategoryHealthcare Category = "Healthcare"
	CategoryFinance    Category = "Finance"
	CategoryEducation  Category = "Education"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryTechnology,
	CategoryHealthcare,
	CategoryFinance,
	CategoryEducation,
}

// ValidCategory reports whether c is a member of the fixed category set.
func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Proposal is a funding request posted by a business owner.
// ID, CreatedBy and CreatedAt are immutable after creation.
type Proposal struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	RequiredInvestment float64   `json:"requiredInvestment"`
	ExpectedROI        float64   `json:"expectedROI"`
	Category           Category  `json:"category"`
	CreatedBy          string    `json:"createdBy"`
	CreatedAt          time.Time `json:"createdAt"`
}

// ProposalInput carries the five caller-supplied proposal fields for
// create and update operations.
type ProposalInput struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	RequiredInvestment float64  `json:"requiredInvestment"`
	ExpectedROI        float64  `json:"expectedROI"`
	Category           Category `json:"category"`
}
