package rfp

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an RFP record.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusSent              Status = "SENT"
	StatusResponsesReceived Status = "RESPONSES_RECEIVED"
	StatusDecided           Status = "DECIDED"
)

// Item is a single line of an RFP.
type Item struct {
	Name           string `json:"name" yaml:"name"`
	Quantity       int    `json:"quantity" yaml:"quantity"`
	Specifications string `json:"specifications" yaml:"specifications"`
}

// Requirements is the structured form of a buyer's procurement need.
type Requirements struct {
	Title             string `json:"title" yaml:"title"`
	Items             []Item `json:"items" yaml:"items"`
	Budget            Number `json:"budget" yaml:"budget"`
	DeliveryTimeline  string `json:"deliveryTimeline" yaml:"deliveryTimeline"`
	PaymentTerms      string `json:"paymentTerms" yaml:"paymentTerms"`
	Warranty          string `json:"warranty" yaml:"warranty"`
	OtherRequirements string `json:"otherRequirements" yaml:"otherRequirements"`
}

// RFP is a stored request for proposals.
type RFP struct {
	ID           int64
	Title        string
	RawPrompt    string
	Requirements Requirements
	Status       Status
	CreatedAt    time.Time
}

type Vendor struct {
	ID    int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Label returns a human readable vendor identity.
func (v Vendor) Label() string {
	name := strings.TrimSpace(v.Name)
	email := strings.TrimSpace(v.Email)
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s <%s>", name, email)
	case name != "":
		return name
	default:
		return email
	}
}

// Proposal is one vendor's free-text reply to an RFP.
type Proposal struct {
	ID        int64
	RFPID     int64
	Vendor    Vendor
	RawText   string
	CreatedAt time.Time
}

// Facts are the numeric facts extracted from a proposal.
type Facts struct {
	TotalPrice    Number `json:"totalPrice"`
	DeliveryDays  Number `json:"deliveryDays"`
	WarrantyYears Number `json:"warrantyYears"`
}

// Benchmark is the best observed value per metric across a cohort.
type Benchmark struct {
	LowestPrice     Number `json:"lowestPrice"`
	FastestDelivery Number `json:"fastestDelivery"`
	LongestWarranty Number `json:"longestWarranty"`
}

// Sub-score maxima of the evaluation rubric.
const (
	MaxRequirementMatch = 40
	MaxClarity          = 20
	MaxFeasibility      = 20
	MaxValueForMoney    = 20
	MaxScore            = MaxRequirementMatch + MaxClarity + MaxFeasibility + MaxValueForMoney
)

// Breakdown holds the four weighted sub-scores of a qualitative assessment.
type Breakdown struct {
	RequirementMatch int `json:"requirementMatch"`
	Clarity          int `json:"clarity"`
	Feasibility      int `json:"feasibility"`
	ValueForMoney    int `json:"valueForMoney"`
}

func (b Breakdown) Total() int {
	return b.RequirementMatch + b.Clarity + b.Feasibility + b.ValueForMoney
}

type Recommendation string

const (
	Accept   Recommendation = "Accept"
	Consider Recommendation = "Consider"
	Reject   Recommendation = "Reject"
)

// ParseRecommendation accepts the three recommendations case-insensitively.
func ParseRecommendation(s string) (Recommendation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accept":
		return Accept, nil
	case "consider":
		return Consider, nil
	case "reject":
		return Reject, nil
	default:
		return "", fmt.Errorf("unknown recommendation %q", s)
	}
}

// Assessment is the independent qualitative judgment of one proposal.
type Assessment struct {
	Breakdown Breakdown
	// BaseScore always equals Breakdown.Total().
	BaseScore int
	// ReportedScore is the total the provider claimed.
	ReportedScore  float64
	Summary        string
	Recommendation Recommendation
}

// Deduction is a penalty applied because a proposal trails the cohort benchmark.
type Deduction struct {
	Metric string `json:"metric"`
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// EvaluationResult is the final, cohort-relative evaluation of one proposal.
type EvaluationResult struct {
	ProposalID     int64          `json:"proposalId"`
	Vendor         Vendor         `json:"vendor"`
	Facts          Facts          `json:"facts"`
	Breakdown      Breakdown      `json:"breakdown"`
	BaseScore      int            `json:"baseScore"`
	Score          int            `json:"score"`
	Deductions     []Deduction    `json:"deductions"`
	Summary        string         `json:"summary"`
	Recommendation Recommendation `json:"recommendation"`
}
