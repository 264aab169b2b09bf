// Package prompt builds the instructions sent to the upstream model: the system
// prompt with the school's institutional facts and the image-generation prompt.
package prompt

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed default_facts.toml
var defaultFactsTOML []byte

// Facts is the institutional knowledge the assistant answers from.
type Facts struct {
	School       School        `toml:"school"`
	Contact      Contact       `toml:"contact"`
	Fees         []FeeBand     `toml:"fees"`
	Admission    Admission     `toml:"admission"`
	Staff        []StaffMember `toml:"staff"`
	Scholarships []Scholarship `toml:"scholarships"`
	Facilities   Facilities    `toml:"facilities"`
	Tutoring     Tutoring      `toml:"tutoring"`
}

type School struct {
	Name     string   `toml:"name"`
	Motto    string   `toml:"motto"`
	Location string   `toml:"location"`
	Levels   []string `toml:"levels"`
}

type Contact struct {
	Phone           string `toml:"phone"`
	WhatsApp        string `toml:"whatsapp"`
	Email           string `toml:"email"`
	AdmissionsEmail string `toml:"admissions_email"`
	OfficeHours     string `toml:"office_hours"`
}

// FeeBand is one row of the fee table.
type FeeBand struct {
	Level    string `toml:"level"`
	Term     string `toml:"term"`
	Amount   int64  `toml:"amount"`
	Currency string `toml:"currency"`
}

type Admission struct {
	Requirements   []string `toml:"requirements"`
	ApplicationFee string   `toml:"application_fee"`
	Intake         string   `toml:"intake"`
}

type StaffMember struct {
	Name string `toml:"name"`
	Role string `toml:"role"`
}

type Scholarship struct {
	Name string `toml:"name"`
	Rule string `toml:"rule"`
}

type Facilities struct {
	Items []string `toml:"items"`
}

type Tutoring struct {
	Guidelines []string `toml:"guidelines"`
}

// DefaultFacts returns the facts compiled into the binary.
func DefaultFacts() *Facts {
	f, err := ParseFacts(defaultFactsTOML)
	if err != nil {
		panic("embedded facts are invalid: " + err.Error())
	}
	return f
}

// LoadFacts reads and parses a facts TOML file.
func LoadFacts(path string) (*Facts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading facts file: %w", err)
	}
	return ParseFacts(data)
}

// ParseFacts decodes a facts TOML document. A document without a school name is rejected.
func ParseFacts(data []byte) (*Facts, error) {
	var f Facts
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("decoding facts: %w", err)
	}
	if f.School.Name == "" {
		return nil, fmt.Errorf("facts: school name is required")
	}
	return &f, nil
}
