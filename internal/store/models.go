package store

import "time"

type Facility struct {
	ID             string
	Name           string
	PassCode       string
	PassFacilityID string
}

type Beamline struct {
	Name           string
	FacilityID     string
	PassResourceID string
}

type Cycle struct {
	Name               string
	FacilityID         string
	Year               string
	StartDate          time.Time
	EndDate            time.Time
	AcceptingProposals bool
	PassDescription    string
	PassID             string
	Proposals          []string
	LastUpdated        time.Time
}

type ProposalType struct {
	PassID          string
	Code            string
	FacilityID      string
	Description     string
	PassDescription string
	LastUpdated     time.Time
}

type SafetyForm struct {
	SafID       string   `json:"saf_id"`
	Status      string   `json:"status"`
	Instruments []string `json:"instruments"`
}

type User struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	BNLID     string  `json:"bnl_id"`
	Username  *string `json:"username"`
	IsPI      bool    `json:"is_pi"`
}

type Proposal struct {
	ProposalID  string
	Title       string
	DataSession string
	PassTypeID  string
	Type        string
	Instruments []string
	SafetyForms []SafetyForm
	Users       []User
	Cycles      []string
	LastUpdated time.Time
}

// ProposalUpdate carries the fields the proposal reconciler owns. Cycles are
// deliberately absent: they belong to the cycle linker.
type ProposalUpdate struct {
	ProposalID  string
	Title       string
	DataSession string
	PassTypeID  string
	Type        string
	Instruments []string
	SafetyForms []SafetyForm
	Users       []User
	LastUpdated time.Time
}

// CycleUpdate carries the fields the cycle reconciler overwrites on every pass.
type CycleUpdate struct {
	Name               string
	FacilityID         string
	Year               string
	StartDate          time.Time
	EndDate            time.Time
	AcceptingProposals bool
	PassDescription    string
	PassID             string
	LastUpdated        time.Time
}

// PI returns the first principal investigator in the user list.
func (p Proposal) PI() (User, bool) {
	for _, user := range p.Users {
		if user.IsPI {
			return user, true
		}
	}
	return User{}, false
}
