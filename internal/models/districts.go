package models

// Chamber identifies a legislative body a district belongs to.
type Chamber string

const (
	ChamberCongressional Chamber = "congressional"
	ChamberStateSenate   Chamber = "senate"
	ChamberStateAssembly Chamber = "assembly"
)

// DistrictAssignment is one (chamber, district) pair produced by boundary
// resolution. A ZIP that spans a boundary yields multiple assignments for the
// same chamber.
type DistrictAssignment struct {
	Chamber  Chamber `json:"chamber"`
	District int     `json:"district"`
}
