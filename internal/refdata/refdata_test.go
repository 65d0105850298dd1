package refdata

import (
	"testing"

	"citzn-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)
	assert.Greater(t, table.Size(), 0)
}

func TestLoad_EntryInvariants(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	for zip, entry := range table.entries {
		assert.Len(t, zip, 5, "ZIP %s must be 5 digits", zip)
		assert.NotEmpty(t, entry.County, "ZIP %s must have a county", zip)
		assert.NotEmpty(t, entry.State, "ZIP %s must have a state", zip)

		switch entry.JurisdictionType {
		case models.JurisdictionMilitary, models.JurisdictionTribal, models.JurisdictionUnincorporated:
			assert.Empty(t, entry.City, "special jurisdiction ZIP %s must not carry a city", zip)
		case models.JurisdictionPOBox:
			assert.NotEmpty(t, entry.City, "PO-Box ZIP %s must map to its delivery city", zip)
		}

		if entry.Districts.MultiDistrict {
			assert.NotEmpty(t, entry.Districts.Alternates, "multi-district ZIP %s must list alternates", zip)
			for _, alt := range entry.Districts.Alternates {
				assert.Positive(t, alt.District)
				assert.NotEmpty(t, alt.Chamber)
			}
		}
	}
}

func TestTable_Lookup(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name     string
		zip      string
		found    bool
		city     string
		county   string
		state    string
		jType    models.JurisdictionType
	}{
		{
			name:   "sacramento capitol",
			zip:    "95814",
			found:  true,
			city:   "Sacramento",
			county: "Sacramento County",
			state:  "CA",
			jType:  models.JurisdictionIncorporated,
		},
		{
			name:   "beverly hills",
			zip:    "90210",
			found:  true,
			city:   "Beverly Hills",
			county: "Los Angeles County",
			state:  "CA",
			jType:  models.JurisdictionIncorporated,
		},
		{
			name:   "military base",
			zip:    "92135",
			found:  true,
			city:   "",
			county: "San Diego County",
			state:  "CA",
			jType:  models.JurisdictionMilitary,
		},
		{
			name:  "unknown zip",
			zip:   "90404",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := table.Lookup(tt.zip)
			assert.Equal(t, tt.found, ok)
			if !tt.found {
				return
			}
			assert.Equal(t, tt.city, entry.City)
			assert.Equal(t, tt.county, entry.County)
			assert.Equal(t, tt.state, entry.State)
			assert.Equal(t, tt.jType, entry.JurisdictionType)
		})
	}
}

func TestTable_RegionForZip(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		zip    string
		found  bool
		state  string
		county string
	}{
		{name: "los angeles prefix", zip: "90404", found: true, state: "CA", county: "Los Angeles County"},
		{name: "sacramento prefix", zip: "95999", found: true, state: "CA", county: "Sacramento County"},
		{name: "nevada prefix", zip: "89109", found: true, state: "NV", county: "Clark County"},
		{name: "alaska prefix", zip: "99999", found: true, state: "AK"},
		{name: "unassigned prefix", zip: "00412", found: false},
		{name: "not a zip", zip: "904", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			region, ok := table.RegionForZip(tt.zip)
			assert.Equal(t, tt.found, ok)
			if !tt.found {
				return
			}
			assert.Equal(t, tt.state, region.State)
			if tt.county != "" {
				assert.Equal(t, tt.county, region.PrincipalCounty)
			}
			assert.NotEmpty(t, region.PrincipalCounty)
		})
	}
}

func TestTable_CrossCountyEntryKeepsSecondary(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	entry, ok := table.Lookup("94303")
	require.True(t, ok)
	assert.Equal(t, "Santa Clara County", entry.County)
	assert.Equal(t, "San Mateo County", entry.SecondaryCounty)
}
