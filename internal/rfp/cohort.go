package rfp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Cohort is an RFP together with the replies received for it, as read from a file.
type Cohort struct {
	RawPrompt string           `json:"rawPrompt,omitempty" yaml:"rawPrompt,omitempty"`
	RFP       Requirements     `json:"rfp" yaml:"rfp"`
	Proposals []CohortProposal `json:"proposals" yaml:"proposals"`
}

type CohortProposal struct {
	Vendor Vendor `json:"vendor" yaml:"vendor"`
	Text   string `json:"text" yaml:"text"`
}

// LoadCohortFile reads a cohort from a YAML or JSON file. JSON is chosen by the .json extension.
func LoadCohortFile(path string) (*Cohort, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cohort file %q: %w", path, err)
	}

	var cohort Cohort
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &cohort)
	} else {
		err = yaml.Unmarshal(data, &cohort)
	}
	if err != nil {
		return nil, fmt.Errorf("parse cohort file %q: %w", path, err)
	}

	if err := cohort.Validate(); err != nil {
		return nil, fmt.Errorf("cohort file %q: %w", path, err)
	}

	return &cohort, nil
}

func (c *Cohort) Validate() error {
	if strings.TrimSpace(c.RFP.Title) == "" {
		return errors.New("rfp title is required")
	}
	for i, p := range c.Proposals {
		if strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("proposal #%d has no text", i+1)
		}
		if strings.TrimSpace(p.Vendor.Name) == "" && strings.TrimSpace(p.Vendor.Email) == "" {
			return fmt.Errorf("proposal #%d has no vendor name or email", i+1)
		}
	}
	return nil
}

// ProposalList converts the cohort entries into proposals numbered from 1 in file order.
func (c *Cohort) ProposalList() []Proposal {
	proposals := make([]Proposal, 0, len(c.Proposals))
	for i, p := range c.Proposals {
		proposals = append(proposals, Proposal{
			ID:      int64(i + 1),
			Vendor:  p.Vendor,
			RawText: p.Text,
		})
	}
	return proposals
}
