package classifier

import (
	"citzn-api/internal/models"
	"citzn-api/internal/refdata"
)

// Classification is the incorporation decision for one ZIP.
type Classification struct {
	IsIncorporated    bool
	City              string
	JurisdictionType  models.JurisdictionType
	JurisdictionLevel models.JurisdictionLevel

	// SecondaryCounty is set for cross-county ZIPs: the majority-population
	// county is the primary, the minority county is recorded here instead of
	// being silently dropped.
	SecondaryCounty string
}

// ReferenceTable interface for dependency injection
type ReferenceTable interface {
	Lookup(zip string) (refdata.Entry, bool)
}

// Classifier decides whether a ZIP falls inside incorporated city limits,
// unincorporated county territory, or a special jurisdiction. Military bases
// and tribal lands have no municipal government, so they must suppress
// municipal-representative lookups even when a city name is nearby.
type Classifier struct {
	table      ReferenceTable
	fullStates map[string]bool
}

// NewClassifier creates a new jurisdiction classifier. fullCoverageStates
// lists the states with federal+state+county+local data.
func NewClassifier(table ReferenceTable, fullCoverageStates []string) *Classifier {
	fullStates := make(map[string]bool, len(fullCoverageStates))
	for _, s := range fullCoverageStates {
		fullStates[s] = true
	}
	return &Classifier{table: table, fullStates: fullStates}
}

// Classify determines incorporation and jurisdiction level for a ZIP already
// known to sit in the given state, with cityHint coming from the geocoder
// when no reference entry exists. Inputs are 5-digit base ZIPs; ZIP+4
// truncation happens upstream in the orchestrator.
func (c *Classifier) Classify(zip, state, cityHint string) Classification {
	level := models.LevelFederalOnly
	if c.fullStates[state] {
		level = models.LevelFullCoverage
	}

	entry, ok := c.table.Lookup(zip)
	if !ok {
		// No reference entry: trust the geocoder's city if it named one,
		// otherwise assume unincorporated county territory.
		if cityHint != "" {
			return Classification{
				IsIncorporated:    true,
				City:              cityHint,
				JurisdictionType:  models.JurisdictionIncorporated,
				JurisdictionLevel: level,
			}
		}
		return Classification{
			JurisdictionType:  models.JurisdictionUnincorporated,
			JurisdictionLevel: level,
		}
	}

	cls := Classification{
		JurisdictionType:  entry.JurisdictionType,
		JurisdictionLevel: level,
		SecondaryCounty:   entry.SecondaryCounty,
	}

	switch entry.JurisdictionType {
	case models.JurisdictionMilitary, models.JurisdictionTribal:
		// Special jurisdictions: no mayor or council to show.
		cls.IsIncorporated = false
		cls.City = ""
	case models.JurisdictionPOBox:
		// PO-Box-only ZIPs map to their delivery city even though no one
		// resides there.
		cls.IsIncorporated = entry.City != ""
		cls.City = entry.City
	case models.JurisdictionUnincorporated:
		cls.IsIncorporated = false
		cls.City = ""
	default:
		cls.IsIncorporated = entry.City != ""
		cls.City = entry.City
	}

	return cls
}
