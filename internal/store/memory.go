package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Compile-time contract assertions.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// MemoryStore keeps every record in process. It backs tests and the
// SYNC_STORE=memory development mode.
type MemoryStore struct {
	mu            sync.RWMutex
	facilities    map[string]Facility
	beamlines     map[string]Beamline
	cycles        map[string]Cycle
	proposalTypes map[string]ProposalType
	proposals     map[string]Proposal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		facilities:    make(map[string]Facility),
		beamlines:     make(map[string]Beamline),
		cycles:        make(map[string]Cycle),
		proposalTypes: make(map[string]ProposalType),
		proposals:     make(map[string]Proposal),
	}
}

func (s *MemoryStore) SaveFacility(_ context.Context, facility Facility) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facilities[facility.ID] = facility
	return nil
}

func (s *MemoryStore) SaveBeamline(_ context.Context, beamline Beamline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beamlines[beamline.Name] = beamline
	return nil
}

func (s *MemoryStore) GetFacility(_ context.Context, id string) (Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	facility, ok := s.facilities[id]
	if !ok {
		return Facility{}, fmt.Errorf("facility %s: %w", id, ErrNotFound)
	}
	return facility, nil
}

func (s *MemoryStore) FacilityByPassID(_ context.Context, passFacilityID string) (Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, facility := range s.facilities {
		if facility.PassFacilityID == passFacilityID {
			return facility, nil
		}
	}
	return Facility{}, fmt.Errorf("facility with pass id %s: %w", passFacilityID, ErrNotFound)
}

func (s *MemoryStore) BeamlineByPassID(_ context.Context, passResourceID string) (Beamline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, beamline := range s.beamlines {
		if beamline.PassResourceID == passResourceID {
			return beamline, nil
		}
	}
	return Beamline{}, fmt.Errorf("beamline with pass id %s: %w", passResourceID, ErrNotFound)
}

func (s *MemoryStore) ListFacilities(_ context.Context) ([]Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Facility, 0, len(s.facilities))
	for _, facility := range s.facilities {
		out = append(out, facility)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpsertCycle(_ context.Context, update CycleUpdate) (Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cycle, ok := s.cycles[update.Name]
	if !ok {
		cycle = Cycle{Name: update.Name, Proposals: []string{}}
	}
	cycle.FacilityID = update.FacilityID
	cycle.Year = update.Year
	cycle.StartDate = update.StartDate
	cycle.EndDate = update.EndDate
	cycle.AcceptingProposals = update.AcceptingProposals
	cycle.PassDescription = update.PassDescription
	cycle.PassID = update.PassID
	cycle.LastUpdated = update.LastUpdated
	s.cycles[update.Name] = cycle
	return cloneCycle(cycle), nil
}

func (s *MemoryStore) AddCycleProposals(_ context.Context, cycleName string, proposalIDs []string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cycle, ok := s.cycles[cycleName]
	if !ok {
		return fmt.Errorf("cycle %s: %w", cycleName, ErrNotFound)
	}
	cycle.Proposals = union(cycle.Proposals, proposalIDs...)
	cycle.LastUpdated = updatedAt
	s.cycles[cycleName] = cycle
	return nil
}

func (s *MemoryStore) GetCycle(_ context.Context, name string) (Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cycle, ok := s.cycles[name]
	if !ok {
		return Cycle{}, fmt.Errorf("cycle %s: %w", name, ErrNotFound)
	}
	return cloneCycle(cycle), nil
}

func (s *MemoryStore) ListCycles(_ context.Context, facilityID string) ([]Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Cycle
	for _, cycle := range s.cycles {
		if facilityID != "" && cycle.FacilityID != facilityID {
			continue
		}
		out = append(out, cloneCycle(cycle))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) UpsertProposalType(_ context.Context, proposalType ProposalType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposalTypes[proposalType.PassID] = proposalType
	return nil
}

func (s *MemoryStore) ListProposalTypes(_ context.Context, facilityID string) ([]ProposalType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ProposalType
	for _, proposalType := range s.proposalTypes {
		if facilityID != "" && proposalType.FacilityID != facilityID {
			continue
		}
		out = append(out, proposalType)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PassID < out[j].PassID })
	return out, nil
}

func (s *MemoryStore) UpsertProposal(_ context.Context, update ProposalUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.proposals[update.ProposalID]
	if !ok {
		proposal = Proposal{ProposalID: update.ProposalID, Cycles: []string{}}
	}
	proposal.Title = update.Title
	proposal.DataSession = update.DataSession
	proposal.PassTypeID = update.PassTypeID
	proposal.Type = update.Type
	proposal.Instruments = append([]string(nil), update.Instruments...)
	proposal.SafetyForms = cloneSafetyForms(update.SafetyForms)
	proposal.Users = cloneUsers(update.Users)
	proposal.LastUpdated = update.LastUpdated
	s.proposals[update.ProposalID] = proposal
	return nil
}

func (s *MemoryStore) GetProposal(_ context.Context, proposalID string) (Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposal, ok := s.proposals[proposalID]
	if !ok {
		return Proposal{}, fmt.Errorf("proposal %s: %w", proposalID, ErrNotFound)
	}
	return cloneProposal(proposal), nil
}

func (s *MemoryStore) AddProposalCycle(_ context.Context, proposalID, cycleName string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.proposals[proposalID]
	if !ok {
		return fmt.Errorf("proposal %s: %w", proposalID, ErrNotFound)
	}
	proposal.Cycles = union(proposal.Cycles, cycleName)
	proposal.LastUpdated = updatedAt
	s.proposals[proposalID] = proposal
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func cloneCycle(cycle Cycle) Cycle {
	cycle.Proposals = append([]string{}, cycle.Proposals...)
	return cycle
}

func cloneProposal(proposal Proposal) Proposal {
	proposal.Instruments = append([]string(nil), proposal.Instruments...)
	proposal.SafetyForms = cloneSafetyForms(proposal.SafetyForms)
	proposal.Users = cloneUsers(proposal.Users)
	proposal.Cycles = append([]string{}, proposal.Cycles...)
	return proposal
}

func cloneSafetyForms(forms []SafetyForm) []SafetyForm {
	if forms == nil {
		return nil
	}
	out := make([]SafetyForm, len(forms))
	for i, form := range forms {
		form.Instruments = append([]string{}, form.Instruments...)
		out[i] = form
	}
	return out
}

func cloneUsers(users []User) []User {
	if users == nil {
		return nil
	}
	out := make([]User, len(users))
	for i, user := range users {
		if user.Username != nil {
			username := *user.Username
			user.Username = &username
		}
		out[i] = user
	}
	return out
}
