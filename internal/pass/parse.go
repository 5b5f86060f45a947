package pass

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func isNull(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decode(op string, data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return &ValidationError{Op: op, Detail: "decode", Err: err}
	}
	return nil
}

// decodeList treats a null body as an empty list; PASS answers null when
// nothing matches.
func decodeList[T any](op string, data []byte) ([]T, error) {
	if isNull(data) {
		return []T{}, nil
	}
	var out []T
	if err := decode(op, data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func ParseProposal(data []byte) (Proposal, error) {
	const op = "GetProposal"
	if isNull(data) {
		return Proposal{}, invalid(op, "empty response")
	}
	var proposal Proposal
	if err := decode(op, data, &proposal); err != nil {
		return Proposal{}, err
	}
	if proposal.ProposalID == "" {
		return Proposal{}, invalid(op, "missing Proposal_ID")
	}
	for i, resource := range proposal.Resources {
		if resource.ID == "" {
			return Proposal{}, invalid(op, "resource %d missing ID", i)
		}
	}
	if proposal.PI != nil && proposal.PI.BNLID == "" && proposal.PI.LastName == "" {
		// PASS sends an empty PI object instead of null for unassigned proposals.
		proposal.PI = nil
	}
	return proposal, nil
}

func ParseSAFs(data []byte) ([]SAF, error) {
	const op = "GetSAFsByProposal"
	safs, err := decodeList[SAF](op, data)
	if err != nil {
		return nil, err
	}
	for i, saf := range safs {
		if saf.SAFID == "" {
			return nil, invalid(op, "saf %d missing SAF_ID", i)
		}
	}
	return safs, nil
}

func ParseCycles(data []byte) ([]Cycle, error) {
	const op = "GetCycles"
	cycles, err := decodeList[Cycle](op, data)
	if err != nil {
		return nil, err
	}
	for i, cycle := range cycles {
		if cycle.Name == "" {
			return nil, invalid(op, "cycle %d missing Name", i)
		}
		if cycle.UserFacilityID == "" {
			return nil, invalid(op, "cycle %s missing User_Facility_ID", cycle.Name)
		}
	}
	return cycles, nil
}

func ParseProposalTypes(data []byte) ([]ProposalType, error) {
	const op = "GetProposalTypes"
	types, err := decodeList[ProposalType](op, data)
	if err != nil {
		return nil, err
	}
	for i, proposalType := range types {
		if proposalType.ID == "" {
			return nil, invalid(op, "proposal type %d missing ID", i)
		}
	}
	return types, nil
}

func parseAllocated(op string, data []byte) ([]AllocatedProposal, error) {
	proposals, err := decodeList[AllocatedProposal](op, data)
	if err != nil {
		return nil, err
	}
	for i, proposal := range proposals {
		if proposal.ProposalID == "" {
			return nil, invalid(op, "entry %d missing Proposal_ID", i)
		}
	}
	return proposals, nil
}

func parseProposals(op string, data []byte) ([]Proposal, error) {
	proposals, err := decodeList[Proposal](op, data)
	if err != nil {
		return nil, err
	}
	for i, proposal := range proposals {
		if proposal.ProposalID == "" {
			return nil, invalid(op, "proposal %d missing Proposal_ID", i)
		}
	}
	return proposals, nil
}

// ProposalIDs flattens allocation records to their proposal ids.
func ProposalIDs(proposals []AllocatedProposal) []string {
	ids := make([]string, 0, len(proposals))
	for _, proposal := range proposals {
		ids = append(ids, proposal.ProposalID.String())
	}
	return ids
}

func (p Person) String() string {
	return fmt.Sprintf("%s %s (%s)", p.FirstName, p.LastName, p.BNLID)
}
