package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreUpsertCycleKeepsProposals(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	cycle, err := s.UpsertCycle(ctx, CycleUpdate{Name: "2024-1", FacilityID: "nsls2", Year: "2024", LastUpdated: now})
	if err != nil {
		t.Fatalf("UpsertCycle: %v", err)
	}
	if cycle.Proposals == nil || len(cycle.Proposals) != 0 {
		t.Fatalf("expected empty proposal set on insert, got %v", cycle.Proposals)
	}

	if err := s.AddCycleProposals(ctx, "2024-1", []string{"1", "2", "1"}, now); err != nil {
		t.Fatalf("AddCycleProposals: %v", err)
	}
	if _, err := s.UpsertCycle(ctx, CycleUpdate{Name: "2024-1", FacilityID: "nsls2", Year: "2025", LastUpdated: now.Add(time.Hour)}); err != nil {
		t.Fatalf("UpsertCycle (update): %v", err)
	}

	got, err := s.GetCycle(ctx, "2024-1")
	if err != nil {
		t.Fatalf("GetCycle: %v", err)
	}
	if got.Year != "2025" {
		t.Errorf("expected year overwritten, got %s", got.Year)
	}
	if len(got.Proposals) != 2 || got.Proposals[0] != "1" || got.Proposals[1] != "2" {
		t.Errorf("expected proposals [1 2], got %v", got.Proposals)
	}
}

func TestMemoryStoreAddCycleProposalsMissingCycle(t *testing.T) {
	s := NewMemoryStore()
	err := s.AddCycleProposals(context.Background(), "nope", []string{"1"}, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreUpsertProposalLeavesCycles(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	if err := s.UpsertProposal(ctx, ProposalUpdate{ProposalID: "300001", Title: "First", LastUpdated: now}); err != nil {
		t.Fatalf("UpsertProposal: %v", err)
	}
	if err := s.AddProposalCycle(ctx, "300001", "2024-1", now); err != nil {
		t.Fatalf("AddProposalCycle: %v", err)
	}
	if err := s.AddProposalCycle(ctx, "300001", "2024-1", now); err != nil {
		t.Fatalf("AddProposalCycle (repeat): %v", err)
	}
	if err := s.UpsertProposal(ctx, ProposalUpdate{ProposalID: "300001", Title: "Renamed", LastUpdated: now}); err != nil {
		t.Fatalf("UpsertProposal (update): %v", err)
	}

	got, err := s.GetProposal(ctx, "300001")
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if got.Title != "Renamed" {
		t.Errorf("expected title replaced, got %q", got.Title)
	}
	if len(got.Cycles) != 1 || got.Cycles[0] != "2024-1" {
		t.Errorf("expected cycles [2024-1], got %v", got.Cycles)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	username := "jdoe"
	if err := s.UpsertProposal(ctx, ProposalUpdate{
		ProposalID: "1",
		Users:      []User{{BNLID: "1", Username: &username, IsPI: true}},
	}); err != nil {
		t.Fatalf("UpsertProposal: %v", err)
	}

	first, _ := s.GetProposal(ctx, "1")
	*first.Users[0].Username = "mutated"
	first.Cycles = append(first.Cycles, "leak")

	second, _ := s.GetProposal(ctx, "1")
	if *second.Users[0].Username != "jdoe" {
		t.Errorf("expected stored username unchanged, got %q", *second.Users[0].Username)
	}
	if len(second.Cycles) != 0 {
		t.Errorf("expected stored cycles unchanged, got %v", second.Cycles)
	}
}

func TestMemoryStoreRegistryLookups(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.SaveFacility(ctx, Facility{ID: "nsls2", PassFacilityID: "5"})
	_ = s.SaveBeamline(ctx, Beamline{Name: "CHX", FacilityID: "nsls2", PassResourceID: "300"})

	facility, err := s.FacilityByPassID(ctx, "5")
	if err != nil || facility.ID != "nsls2" {
		t.Fatalf("FacilityByPassID = %+v, %v", facility, err)
	}
	if _, err := s.FacilityByPassID(ctx, "99"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown facility, got %v", err)
	}
	beamline, err := s.BeamlineByPassID(ctx, "300")
	if err != nil || beamline.Name != "CHX" {
		t.Fatalf("BeamlineByPassID = %+v, %v", beamline, err)
	}
	if _, err := s.BeamlineByPassID(ctx, "301"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown beamline, got %v", err)
	}
}

func TestMemoryStoreKeepsEmptySafetyFormInstruments(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	err := s.UpsertProposal(ctx, ProposalUpdate{
		ProposalID:  "300100",
		SafetyForms: []SafetyForm{{SafID: "9", Instruments: []string{}}},
	})
	if err != nil {
		t.Fatalf("UpsertProposal: %v", err)
	}
	proposal, err := s.GetProposal(ctx, "300100")
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if proposal.SafetyForms[0].Instruments == nil {
		t.Fatal("expected an empty instrument list, got nil")
	}
}
