package rfp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNumberJSON(t *testing.T) {
	var facts Facts
	require.NoError(t, json.Unmarshal([]byte(`{"totalPrice": 1200.5, "deliveryDays": null}`), &facts))

	price, ok := facts.TotalPrice.Get()
	require.True(t, ok)
	require.Equal(t, 1200.5, price)
	require.False(t, facts.DeliveryDays.IsKnown())
	require.False(t, facts.WarrantyYears.IsKnown())

	out, err := json.Marshal(facts)
	require.NoError(t, err)
	require.JSONEq(t, `{"totalPrice": 1200.5, "deliveryDays": null, "warrantyYears": null}`, string(out))
}

func TestNumberString(t *testing.T) {
	require.Equal(t, "unknown", Unknown().String())
	require.Equal(t, "42", Known(42).String())
	require.Equal(t, "2.5", Known(2.5).String())
}

func TestParseRecommendation(t *testing.T) {
	cases := map[string]Recommendation{
		"Accept":     Accept,
		" consider ": Consider,
		"REJECT":     Reject,
	}
	for in, want := range cases {
		got, err := ParseRecommendation(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}

	_, err := ParseRecommendation("maybe")
	require.Error(t, err)
}

func TestVendorLabel(t *testing.T) {
	require.Equal(t, "Acme <sales@acme.test>", Vendor{Name: "Acme", Email: "sales@acme.test"}.Label())
	require.Equal(t, "Acme", Vendor{Name: "Acme"}.Label())
	require.Equal(t, "sales@acme.test", Vendor{Email: "sales@acme.test"}.Label())
}

func TestLoadCohortFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cohort.yaml")
	content := `
rfp:
  title: Office laptops
  items:
    - name: Laptop
      quantity: 20
      specifications: 16GB RAM
  budget: null
  deliveryTimeline: 30 days
proposals:
  - vendor:
      name: Acme
      email: sales@acme.test
    text: We offer 20 laptops for $24,000 delivered in 14 days.
  - vendor:
      name: Globex
    text: Laptops available, price on request.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cohort, err := LoadCohortFile(path)
	require.NoError(t, err)
	require.Equal(t, "Office laptops", cohort.RFP.Title)
	require.Len(t, cohort.RFP.Items, 1)
	require.Equal(t, 20, cohort.RFP.Items[0].Quantity)
	require.False(t, cohort.RFP.Budget.IsKnown())
	require.Equal(t, "30 days", cohort.RFP.DeliveryTimeline)

	proposals := cohort.ProposalList()
	require.Len(t, proposals, 2)
	require.Equal(t, int64(1), proposals[0].ID)
	require.Equal(t, "Acme", proposals[0].Vendor.Name)
	require.Equal(t, int64(2), proposals[1].ID)
}

func TestLoadCohortFileJSONBudget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cohort.json")
	content := `{"rfp": {"title": "Chairs", "budget": 5000}, "proposals": [{"vendor": {"email": "a@b.test"}, "text": "offer"}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cohort, err := LoadCohortFile(path)
	require.NoError(t, err)
	budget, ok := cohort.RFP.Budget.Get()
	require.True(t, ok)
	require.Equal(t, 5000.0, budget)
}

func TestLoadCohortFileValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cohort.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rfp:\n  title: Chairs\nproposals:\n  - vendor:\n      name: Acme\n    text: \"\"\n"), 0o600))

	_, err := LoadCohortFile(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "proposal #1 has no text")
}
