package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"facilitysync/internal/logger"
	"facilitysync/internal/pass"
	"facilitysync/internal/store"
)

// SyncProposal reconciles one proposal from PASS. facilityID may be empty,
// in which case the engine's default facility is used for the PASS calls.
func (e *Engine) SyncProposal(ctx context.Context, facilityID, proposalID string) (Summary, error) {
	started := time.Now()
	if facilityID == "" {
		facilityID = e.defaultFacility
	}
	facility, err := e.resolver.Facility(ctx, facilityID)
	if err != nil {
		return Summary{}, err
	}
	if err := e.syncProposal(ctx, facility, proposalID); err != nil {
		return Summary{}, err
	}
	logger.FromContext(ctx, e.logger).Info("proposal synchronized",
		"proposal_id", proposalID, "duration", elapsed(started))
	return Summary{Synced: 1}, nil
}

func (e *Engine) syncProposal(ctx context.Context, facility store.Facility, proposalID string) error {
	log := logger.FromContext(ctx, e.logger).With("proposal_id", proposalID)

	remote, err := e.remote.GetProposal(ctx, facility.PassCode, proposalID)
	if err != nil {
		log.Error("retrieving proposal from PASS failed", "error", err)
		return fmt.Errorf("retrieve proposal %s: %w", proposalID, err)
	}
	safs, err := e.remote.GetSAFsByProposal(ctx, facility.PassCode, proposalID)
	if err != nil {
		return fmt.Errorf("retrieve safety forms for %s: %w", proposalID, err)
	}

	forms := make([]store.SafetyForm, 0, len(safs))
	for _, saf := range safs {
		instruments, err := e.resolver.Beamlines(ctx, resourceIDs(saf.Resources))
		if err != nil {
			return fmt.Errorf("resolve beamlines for safety form %s: %w", saf.SAFID, err)
		}
		forms = append(forms, store.SafetyForm{
			SafID:       saf.SAFID.String(),
			Status:      saf.Status,
			Instruments: instruments,
		})
	}

	instruments, err := e.resolver.Beamlines(ctx, resourceIDs(remote.Resources))
	if err != nil {
		return fmt.Errorf("resolve beamlines for proposal %s: %w", proposalID, err)
	}

	users := normalizeUsers(remote)
	if remote.PI == nil {
		log.Warn("proposal does not have a PI")
	}
	for i := range users {
		users[i].Username = e.resolver.Username(ctx, users[i].BNLID)
	}

	// PASS is asked by the requested id; the stored key is what PASS returned.
	storedID := remote.ProposalID.String()
	update := store.ProposalUpdate{
		ProposalID:  storedID,
		Title:       remote.Title,
		DataSession: DataSession(storedID),
		PassTypeID:  remote.ProposalTypeID.String(),
		Type:        remote.ProposalTypeDescription,
		Instruments: instruments,
		SafetyForms: forms,
		Users:       users,
		LastUpdated: e.now(),
	}
	if err := e.store.UpsertProposal(ctx, update); err != nil {
		return fmt.Errorf("upsert proposal %s: %w", storedID, err)
	}

	if e.indexer != nil {
		stored, err := e.store.GetProposal(ctx, storedID)
		if err != nil {
			log.Warn("reading proposal back for indexing failed", "error", err)
			return nil
		}
		e.indexer.IndexProposal(stored)
	}
	return nil
}

// normalizeUsers converts the experimenters into users and guarantees exactly
// one PI whenever PASS names one: the first experimenter whose BNL id matches
// the PI's (case-insensitively) is flagged, and when none matches the PI is
// appended as an extra user.
func normalizeUsers(proposal pass.Proposal) []store.User {
	users := make([]store.User, 0, len(proposal.Experimenters)+1)
	piID := ""
	if proposal.PI != nil {
		piID = proposal.PI.BNLID.String()
	}

	piFound := false
	for _, person := range proposal.Experimenters {
		isPI := piID != "" && !piFound && strings.EqualFold(piID, person.BNLID.String())
		if isPI {
			piFound = true
		}
		users = append(users, userFromPerson(person, isPI))
	}
	if proposal.PI != nil && !piFound {
		users = append(users, userFromPerson(*proposal.PI, true))
	}
	return users
}

func userFromPerson(person pass.Person, isPI bool) store.User {
	return store.User{
		FirstName: person.FirstName,
		LastName:  person.LastName,
		Email:     person.Email,
		BNLID:     person.BNLID.String(),
		IsPI:      isPI,
	}
}

func resourceIDs(resources []pass.Resource) []string {
	ids := make([]string, 0, len(resources))
	for _, resource := range resources {
		ids = append(ids, resource.ID.String())
	}
	return ids
}
