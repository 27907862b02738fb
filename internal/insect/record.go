// Package insect holds the data contracts shared by the identification
// pipeline and the persistence store.
package insect

import (
	"fmt"
	"strings"
)

// IdentificationRecord is the taxonomic result of a successful identification.
type IdentificationRecord struct {
	CommonName      string `json:"commonName"`
	ScientificName  string `json:"scientificName"`
	Order           string `json:"order"`
	Habitat         string `json:"habitat"`
	Diet            string `json:"diet"`
	LifeCycle       string `json:"lifeCycle"`
	GeographicRange string `json:"geographicRange"`
	WingspanSize    string `json:"wingspanSize"`
	EcologicalRole  string `json:"ecologicalRole"`
	Description     string `json:"description"`
}

// StoredRecord is an IdentificationRecord as persisted in history.
type StoredRecord struct {
	IdentificationRecord
	ID         string `json:"id"`
	Timestamp  int64  `json:"timestamp"`
	Image      string `json:"image,omitempty"`
	IsFavorite bool   `json:"isFavorite"`
}

// MissingFieldsError lists the JSON names of required fields that were empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("identification record missing fields: %s", strings.Join(e.Fields, ", "))
}

// fields returns the record's values keyed by JSON name, in schema order.
func (r IdentificationRecord) fields() [][2]string {
	return [][2]string{
		{"commonName", r.CommonName},
		{"scientificName", r.ScientificName},
		{"order", r.Order},
		{"habitat", r.Habitat},
		{"diet", r.Diet},
		{"lifeCycle", r.LifeCycle},
		{"geographicRange", r.GeographicRange},
		{"wingspanSize", r.WingspanSize},
		{"ecologicalRole", r.EcologicalRole},
		{"description", r.Description},
	}
}

// FieldNames lists the schema's JSON field names in order.
func FieldNames() []string {
	pairs := IdentificationRecord{}.fields()
	names := make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = p[0]
	}
	return names
}

// Validate reports every field that is empty or whitespace only. A record is
// either complete or invalid.
func (r IdentificationRecord) Validate() error {
	var missing []string
	for _, p := range r.fields() {
		if strings.TrimSpace(p[1]) == "" {
			missing = append(missing, p[0])
		}
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

// Normalize trims surrounding whitespace from every field.
func (r IdentificationRecord) Normalize() IdentificationRecord {
	return IdentificationRecord{
		CommonName:      strings.TrimSpace(r.CommonName),
		ScientificName:  strings.TrimSpace(r.ScientificName),
		Order:           strings.TrimSpace(r.Order),
		Habitat:         strings.TrimSpace(r.Habitat),
		Diet:            strings.TrimSpace(r.Diet),
		LifeCycle:       strings.TrimSpace(r.LifeCycle),
		GeographicRange: strings.TrimSpace(r.GeographicRange),
		WingspanSize:    strings.TrimSpace(r.WingspanSize),
		EcologicalRole:  strings.TrimSpace(r.EcologicalRole),
		Description:     strings.TrimSpace(r.Description),
	}
}
