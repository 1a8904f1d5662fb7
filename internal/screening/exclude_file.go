package screening

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spigell/rfp-evaluator/internal/rfp"
	"go.uber.org/zap"
)

// ExcludedVendors is the content of an exclude file.
type ExcludedVendors struct {
	Items []*ExcludedVendor `json:"items"`
}

type ExcludedVendor struct {
	Name       string    `json:"name,omitempty"`
	Email      string    `json:"email,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ExcludedAt time.Time `json:"excludedAt,omitzero"`
}

// LoadExcludeFile reads an exclude file. An empty file excludes nobody.
func LoadExcludeFile(path string) (*ExcludedVendors, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedVendors{}, nil
	}

	var excluded ExcludedVendors
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

// Entries lists every name and email of the file.
func (v *ExcludedVendors) Entries() []string {
	entries := make([]string, 0, len(v.Items)*2)
	for _, vendor := range v.Items {
		if vendor == nil {
			continue
		}
		if vendor.Email != "" {
			entries = append(entries, vendor.Email)
		}
		if vendor.Name != "" {
			entries = append(entries, vendor.Name)
		}
	}
	return entries
}

type excludeFileFilter struct {
	path     string
	excluded *ExcludedVendors
	disabled bool
	reason   string
	logger   *zap.Logger
}

// NewExcludeFile creates a filter that removes proposals of vendors listed in an exclude file.
func NewExcludeFile(path string, logger *zap.Logger) Filter {
	return &excludeFileFilter{path: strings.TrimSpace(path), logger: nopIfNil(logger)}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludeFileFilter) IsEnabled() bool { return !f.disabled }

func (f *excludeFileFilter) Validate() error {
	if f.path == "" {
		return nil
	}
	excluded, err := LoadExcludeFile(f.path)
	if err != nil {
		return fmt.Errorf("getting excluded vendors from file: %w", err)
	}
	f.excluded = excluded
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, proposals []rfp.Proposal) ([]rfp.Proposal, Step, error) {
	initial := len(proposals)
	if f.excluded == nil || len(f.excluded.Items) == 0 {
		return proposals, Step{Initial: initial, Left: initial}, nil
	}

	set := newVendorSet(f.excluded.Entries())
	kept, dropped := keep(proposals, func(p rfp.Proposal) bool { return !set.contains(p.Vendor) })
	if len(dropped) > 0 {
		f.logger.Info("excluding proposals based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_proposals", labels(dropped)),
			zap.Int("proposals_left", len(kept)),
		)
	}

	return kept, step(initial, kept), nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
