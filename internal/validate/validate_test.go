package validate

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"crewsheet/internal/company"
	"crewsheet/internal/dates"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testCompany(t *testing.T) *company.Config {
	t.Helper()
	cfg, err := company.Parse([]byte(`{
	"employees": ["Alex Doe", "Bea Smith"],
	"jobsites": [{"code": "M567", "name": "Main Street"}],
	"materials": [{"key": "glass", "label": "Glass Panels"}],
	"labor_activities": [{"key": "stretch", "label": "Group Stretch & Flex", "default_quantity": 0.25, "default_unit": "hours"}]
	}`))
	require.NoError(t, err)
	return cfg
}

func fieldCodes(t *testing.T, err error) map[string]Code {
	t.Helper()
	var ve *Error
	require.True(t, errors.As(err, &ve), "expected *validate.Error, got %v", err)
	out := map[string]Code{}
	for _, f := range ve.Fields {
		out[f.Field] = f.Code
	}
	return out
}

func TestEntryNormalizesAgainstConfig(t *testing.T) {
	v := Validator{Company: testCompany(t), Dates: dates.Resolver{BaseDate: "2025-09-10"}}
	e, err := v.Entry(EntryInput{Employee: "alex doe", Date: "yesterday", Hours: dec("7.5"), Project: "main street", Notes: " rain "})
	require.NoError(t, err)
	require.Equal(t, "Alex Doe", e.Employee)
	require.Equal(t, "2025-09-09", e.Date)
	require.Equal(t, "Main Street", e.Project)
	require.Equal(t, "rain", e.Notes)
	require.True(t, e.Hours.Equal(decimal.RequireFromString("7.5")))
}

func TestEntryReportsAllFieldErrors(t *testing.T) {
	v := Validator{Company: testCompany(t), Dates: dates.Resolver{BaseDate: "2025-09-10"}}
	_, err := v.Entry(EntryInput{Employee: "Zed", Date: "someday", Hours: dec("-1"), Project: "Nowhere"})
	codes := fieldCodes(t, err)
	require.Equal(t, map[string]Code{
		"employee": UnknownReference,
		"date":     UnparseableDate,
		"hours":    OutOfRange,
		"project":  UnknownReference,
	}, codes)

	var ve *Error
	require.True(t, errors.As(err, &ve))
	require.Equal(t, []string{"Alex Doe", "Bea Smith"}, ve.Fields[0].Choices)
}

func TestEntryProjectRequiredOnlyWithJobsites(t *testing.T) {
	withSites := Validator{Company: testCompany(t)}
	_, err := withSites.Entry(EntryInput{Employee: "Alex Doe", Date: "2025-09-01", Hours: dec("8")})
	require.Equal(t, map[string]Code{"project": MissingField}, fieldCodes(t, err))

	noSites := Validator{Company: &company.Config{Employees: []company.Employee{{Name: "Alex Doe"}}}}
	e, err := noSites.Entry(EntryInput{Employee: "Alex Doe", Date: "2025-09-01", Hours: dec("8")})
	require.NoError(t, err)
	require.Empty(t, e.Project)

	noConfig := Validator{}
	e, err = noConfig.Entry(EntryInput{Employee: "Anyone", Date: "2025-09-01", Hours: dec("0"), Project: "Free text"})
	require.NoError(t, err)
	require.Equal(t, "Free text", e.Project)
}

func TestEntryMissingFields(t *testing.T) {
	_, err := Validator{}.Entry(EntryInput{})
	require.Equal(t, map[string]Code{
		"employee": MissingField,
		"date":     MissingField,
		"hours":    MissingField,
	}, fieldCodes(t, err))
}

func TestLaborAppliesActivityDefaults(t *testing.T) {
	v := Validator{Company: testCompany(t)}
	r, err := v.Labor(LaborInput{Date: "2025-09-01", Job: "m567", Activity: "Group Stretch & Flex"})
	require.NoError(t, err)
	require.Equal(t, "M567", r.Job)
	require.Equal(t, "Group Stretch & Flex", r.Activity)
	require.Equal(t, "0.25", r.Quantity.String())
	require.Equal(t, "hours", r.Unit)

	r, err = v.Labor(LaborInput{Date: "2025-09-01", Job: "M567", Activity: "stretch", Quantity: dec("0.5"), Unit: "hrs"})
	require.NoError(t, err)
	require.Equal(t, "0.5", r.Quantity.String())
	require.Equal(t, "hrs", r.Unit)
}

func TestLaborWithoutDefaults(t *testing.T) {
	v := Validator{}
	_, err := v.Labor(LaborInput{Date: "2025-09-01", Job: "M567", Activity: "Unit Install"})
	require.Equal(t, map[string]Code{"quantity": MissingField, "unit": MissingField}, fieldCodes(t, err))

	_, err = Validator{Company: testCompany(t)}.Labor(LaborInput{Date: "2025-09-01", Job: "Elsewhere", Activity: "juggling"})
	codes := fieldCodes(t, err)
	require.Equal(t, UnknownReference, codes["job"])
	require.Equal(t, UnknownReference, codes["activity"])
}

func TestMaterialValidation(t *testing.T) {
	v := Validator{Company: testCompany(t)}
	r, err := v.Material(MaterialInput{Date: "2025-09-01", Job: "M567", Category: "glass panels", Quantity: dec("12"), Unit: "pcs"})
	require.NoError(t, err)
	require.Equal(t, "Glass Panels", r.Category)

	_, err = v.Material(MaterialInput{Date: "2025-09-01", Job: "M567", Category: "steel", Quantity: dec("-2")})
	require.Equal(t, map[string]Code{
		"category": UnknownReference,
		"quantity": OutOfRange,
		"unit":     MissingField,
	}, fieldCodes(t, err))
}

func TestAmountsOutsideBoundsAreRejected(t *testing.T) {
	for _, s := range []string{"1e30000000", "1e2000000000", "-1e30000000", "1000000", "1e-30000000", "7.1234567"} {
		require.False(t, Bounded(decimal.RequireFromString(s)), s)
	}
	for _, s := range []string{"0", "0e-30000000", "999999.999999", "7.5", "24", "1.5e2"} {
		require.True(t, Bounded(decimal.RequireFromString(s)), s)
	}

	v := Validator{}
	_, err := v.Entry(EntryInput{Employee: "Alex Doe", Date: "2025-09-01", Hours: dec("1e30000000")})
	require.Equal(t, map[string]Code{"hours": OutOfRange}, fieldCodes(t, err))
	var ve *Error
	require.True(t, errors.As(err, &ve))
	require.Empty(t, ve.Fields[0].Value)

	_, err = v.Material(MaterialInput{Date: "2025-09-01", Job: "M567", Category: "glass", Quantity: dec("1e-30000000"), Unit: "pcs"})
	require.Equal(t, map[string]Code{"quantity": OutOfRange}, fieldCodes(t, err))

	e, err := v.Entry(EntryInput{Employee: "Alex Doe", Date: "2025-09-01", Hours: dec("0e-30000000")})
	require.NoError(t, err)
	require.Equal(t, "0", e.Hours.String())
}
