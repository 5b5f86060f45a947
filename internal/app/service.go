package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"facilitysync/internal/auth"
	"facilitysync/internal/config"
	"facilitysync/internal/jobs"
	"facilitysync/internal/rbac"
	"facilitysync/internal/reconcile"
	"facilitysync/internal/search"
	"facilitysync/internal/store"
	"facilitysync/internal/util"
)

// Session is the caller identified by a bearer token.
type Session struct {
	Subject string
	Role    string
}

type dataStore interface {
	GetFacility(ctx context.Context, id string) (store.Facility, error)
	GetProposal(ctx context.Context, proposalID string) (store.Proposal, error)
	ListFacilities(ctx context.Context) ([]store.Facility, error)
	Ping(ctx context.Context) error
}

type jobDispatcher interface {
	CreateJob(ctx context.Context, action jobs.Action, params jobs.Params) (jobs.Job, error)
	Job(ctx context.Context, id string) (jobs.Job, error)
	Ping(ctx context.Context) error
}

type proposalSearcher interface {
	Search(q search.Query) search.Response
}

type Service struct {
	cfg    config.Config
	store  dataStore
	jobs   jobDispatcher
	search proposalSearcher
	logger *slog.Logger
}

func New(cfg config.Config, dataStore dataStore, dispatcher jobDispatcher, searcher proposalSearcher, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, store: dataStore, jobs: dispatcher, search: searcher, logger: logger}
}

func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{Subject: claims.Sub, Role: string(rbac.Normalize(claims.Role))}, nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Role(role), action)
}

// Ping checks each backing dependency; a nil entry means healthy.
func (s *Service) Ping(ctx context.Context) map[string]error {
	return map[string]error{
		"database": s.store.Ping(ctx),
		"jobs":     s.jobs.Ping(ctx),
	}
}

func (s *Service) SyncProposal(ctx context.Context, rawProposalID, facility string) (jobs.Job, error) {
	proposalID := strings.TrimSpace(rawProposalID)
	if _, err := strconv.ParseInt(proposalID, 10, 64); err != nil {
		return jobs.Job{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "proposal_id must be an integer", map[string]any{"proposal_id": rawProposalID})
	}
	if facility != "" {
		if err := s.requireFacility(ctx, facility); err != nil {
			return jobs.Job{}, err
		}
	}
	return s.createJob(ctx, jobs.ActionSyncProposal, jobs.Params{ProposalID: proposalID, Facility: facility})
}

func (s *Service) SyncProposalTypes(ctx context.Context, facility string) (jobs.Job, error) {
	if err := s.requireFacility(ctx, facility); err != nil {
		return jobs.Job{}, err
	}
	return s.createJob(ctx, jobs.ActionSyncProposalTypes, jobs.Params{Facility: facility})
}

func (s *Service) SyncProposalsForCycle(ctx context.Context, cycle string) (jobs.Job, error) {
	cycle = strings.TrimSpace(cycle)
	if cycle == "" {
		return jobs.Job{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cycle is required", nil)
	}
	return s.createJob(ctx, jobs.ActionSyncProposalsForCycle, jobs.Params{Cycle: cycle})
}

func (s *Service) SyncCycles(ctx context.Context, facility string) (jobs.Job, error) {
	if err := s.requireFacility(ctx, facility); err != nil {
		return jobs.Job{}, err
	}
	return s.createJob(ctx, jobs.ActionSyncCycles, jobs.Params{Facility: facility})
}

func (s *Service) UpdateCycleInformation(ctx context.Context, facility, cycle string) (jobs.Job, error) {
	if err := s.requireFacility(ctx, facility); err != nil {
		return jobs.Job{}, err
	}
	return s.createJob(ctx, jobs.ActionUpdateCycleInformation, jobs.Params{
		Facility:   facility,
		Cycle:      strings.TrimSpace(cycle),
		SyncSource: string(reconcile.SourcePASS),
	})
}

func (s *Service) JobStatus(ctx context.Context, id string) (jobs.Job, error) {
	id = strings.TrimSpace(id)
	if !util.ValidID(id) {
		return jobs.Job{}, domainError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("Job %s not found", id), nil)
	}
	job, err := s.jobs.Job(ctx, id)
	if errors.Is(err, jobs.ErrJobNotFound) {
		return jobs.Job{}, domainError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("Job %s not found", id), nil)
	}
	return job, err
}

func (s *Service) Proposal(ctx context.Context, proposalID string) (map[string]any, error) {
	proposal, err := s.store.GetProposal(ctx, proposalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("Proposal %s not found", proposalID), nil)
	}
	if err != nil {
		return nil, err
	}
	return proposalPayload(proposal), nil
}

// Facilities lists the registry facilities that sync routes accept.
func (s *Service) Facilities(ctx context.Context) ([]map[string]any, error) {
	facilities, err := s.store.ListFacilities(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(facilities))
	for _, facility := range facilities {
		out = append(out, map[string]any{
			"id":        facility.ID,
			"name":      facility.Name,
			"pass_code": facility.PassCode,
		})
	}
	return out, nil
}

func (s *Service) SearchProposals(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) requireFacility(ctx context.Context, facility string) error {
	_, err := s.store.GetFacility(ctx, facility)
	if errors.Is(err, store.ErrNotFound) {
		return domainError(http.StatusUnprocessableEntity, "UNKNOWN_FACILITY", fmt.Sprintf("Unknown facility %q", facility), nil)
	}
	return err
}

func (s *Service) createJob(ctx context.Context, action jobs.Action, params jobs.Params) (jobs.Job, error) {
	job, err := s.jobs.CreateJob(ctx, action, params)
	if err != nil {
		if jobs.IsClientError(err) {
			return jobs.Job{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		}
		return jobs.Job{}, err
	}
	return job, nil
}

func proposalPayload(p store.Proposal) map[string]any {
	return map[string]any{
		"proposal_id":  p.ProposalID,
		"title":        p.Title,
		"data_session": p.DataSession,
		"pass_type_id": p.PassTypeID,
		"type":         p.Type,
		"instruments":  nonNilStrings(p.Instruments),
		"safs":         nonNilForms(p.SafetyForms),
		"users":        nonNilUsers(p.Users),
		"cycles":       nonNilStrings(p.Cycles),
		"last_updated": p.LastUpdated.UTC().Format(time.RFC3339),
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilForms(forms []store.SafetyForm) []store.SafetyForm {
	out := make([]store.SafetyForm, len(forms))
	for i, form := range forms {
		form.Instruments = nonNilStrings(form.Instruments)
		out[i] = form
	}
	return out
}

func nonNilUsers(users []store.User) []store.User {
	if users == nil {
		return []store.User{}
	}
	return users
}
