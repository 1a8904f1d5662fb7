package screening

import (
	"context"
	"strings"

	"github.com/spigell/rfp-evaluator/internal/rfp"
	"go.uber.org/zap"
)

type excludedVendorsFilter struct {
	vendors  []string
	disabled bool
	reason   string
	logger   *zap.Logger
}

// NewExcludedVendors creates a filter that removes proposals of vendors listed by name or email.
func NewExcludedVendors(vendors []string, logger *zap.Logger) Filter {
	return &excludedVendorsFilter{vendors: vendors, logger: nopIfNil(logger)}
}

func (f *excludedVendorsFilter) Name() string { return "excluded_vendors" }

func (f *excludedVendorsFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludedVendorsFilter) IsEnabled() bool { return !f.disabled }

func (f *excludedVendorsFilter) Validate() error { return nil }

func (f *excludedVendorsFilter) Apply(_ context.Context, proposals []rfp.Proposal) ([]rfp.Proposal, Step, error) {
	initial := len(proposals)
	if len(f.vendors) == 0 {
		return proposals, Step{Initial: initial, Left: initial}, nil
	}

	set := newVendorSet(f.vendors)
	kept, dropped := keep(proposals, func(p rfp.Proposal) bool { return !set.contains(p.Vendor) })
	if len(dropped) > 0 {
		f.logger.Info("excluding proposals by vendors",
			zap.Strings("excluded_vendors", f.vendors),
			zap.Strings("excluded_proposals", labels(dropped)),
			zap.Int("proposals_left", len(kept)),
		)
	}

	return kept, step(initial, kept), nil
}

func (f *excludedVendorsFilter) Status() Status {
	details := map[string]string{}
	if len(f.vendors) > 0 {
		details["vendors"] = strings.Join(f.vendors, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type duplicateVendorsFilter struct {
	disabled bool
	reason   string
	logger   *zap.Logger
}

// NewDuplicateVendors creates a filter that keeps only the first proposal of every vendor.
func NewDuplicateVendors(logger *zap.Logger) Filter {
	return &duplicateVendorsFilter{logger: nopIfNil(logger)}
}

func (f *duplicateVendorsFilter) Name() string { return "duplicate_vendors" }

func (f *duplicateVendorsFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *duplicateVendorsFilter) IsEnabled() bool { return !f.disabled }

func (f *duplicateVendorsFilter) Validate() error { return nil }

func (f *duplicateVendorsFilter) Apply(_ context.Context, proposals []rfp.Proposal) ([]rfp.Proposal, Step, error) {
	initial := len(proposals)
	seen := make(map[string]struct{}, initial)
	kept, dropped := keep(proposals, func(p rfp.Proposal) bool {
		key := vendorKey(p.Vendor)
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
		return true
	})
	if len(dropped) > 0 {
		f.logger.Info("excluding repeated proposals of the same vendor",
			zap.Strings("excluded_proposals", labels(dropped)),
			zap.Int("proposals_left", len(kept)),
		)
	}

	return kept, step(initial, kept), nil
}

func (f *duplicateVendorsFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

// vendorKey identifies a vendor by lower-cased email, falling back to the name.
func vendorKey(v rfp.Vendor) string {
	if email := strings.ToLower(strings.TrimSpace(v.Email)); email != "" {
		return "email:" + email
	}
	return "name:" + strings.ToLower(strings.TrimSpace(v.Name))
}

type vendorSet map[string]struct{}

func newVendorSet(entries []string) vendorSet {
	set := make(vendorSet, len(entries))
	for _, entry := range entries {
		if entry = strings.ToLower(strings.TrimSpace(entry)); entry != "" {
			set[entry] = struct{}{}
		}
	}
	return set
}

func (s vendorSet) contains(v rfp.Vendor) bool {
	for _, candidate := range []string{v.Email, v.Name} {
		if candidate = strings.ToLower(strings.TrimSpace(candidate)); candidate == "" {
			continue
		}
		if _, ok := s[candidate]; ok {
			return true
		}
	}
	return false
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
