package pass

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ID is a PASS identifier. PASS serialises ids as numbers in some endpoints
// and strings in others; both decode to the same value.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("pass id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Time accepts the timestamp layouts PASS emits, with or without a zone.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *Time) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("pass time: %w", err)
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, *raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("pass time: unrecognised layout %q", *raw)
}

type Person struct {
	BNLID     ID     `json:"BNL_ID"`
	FirstName string `json:"First_Name"`
	LastName  string `json:"Last_Name"`
	Email     string `json:"Email"`
}

type Resource struct {
	ID   ID     `json:"ID"`
	Code string `json:"Code"`
	Name string `json:"Name"`
}

type Proposal struct {
	ProposalID              ID         `json:"Proposal_ID"`
	Title                   string     `json:"Title"`
	ProposalTypeID          ID         `json:"Proposal_Type_ID"`
	ProposalTypeDescription string     `json:"Proposal_Type_Description"`
	PI                      *Person    `json:"PI"`
	Experimenters           []Person   `json:"Experimenters"`
	Resources               []Resource `json:"Resources"`
}

type SAF struct {
	SAFID     ID         `json:"SAF_ID"`
	Status    string     `json:"Status"`
	Resources []Resource `json:"Resources"`
}

type Cycle struct {
	ID             ID     `json:"ID"`
	Name           string `json:"Name"`
	Year           ID     `json:"Year"`
	StartDate      Time   `json:"Start_Date"`
	EndDate        Time   `json:"End_Date"`
	Active         bool   `json:"Active"`
	Description    string `json:"Description"`
	UserFacilityID ID     `json:"User_Facility_ID"`
}

type ProposalType struct {
	ID             ID     `json:"ID"`
	Code           string `json:"Code"`
	Description    string `json:"Description"`
	UserFacilityID ID     `json:"User_Facility_ID"`
}

// AllocatedProposal is the slim record returned by the allocation endpoints.
type AllocatedProposal struct {
	ProposalID ID     `json:"Proposal_ID"`
	Title      string `json:"Title"`
	Cycle      string `json:"Cycle"`
}
