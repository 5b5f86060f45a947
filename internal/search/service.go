package search

import (
	"context"
	"log/slog"

	"facilitysync/internal/store"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili  *Meili
	pgfts  *PgFTS
	logger *slog.Logger
}

// NewService creates a search service. Either backend may be nil: meili when
// Meilisearch is not configured, pgfts when the store is in memory.
func NewService(meili *Meili, pgfts *PgFTS, logger *slog.Logger) *Service {
	return &Service{meili: meili, pgfts: pgfts, logger: logger}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back to pgfts", "error", err)
	}
	if s.pgfts == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		s.logger.Error("pgfts search failed", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexProposal pushes a stored proposal to Meilisearch without blocking.
func (s *Service) IndexProposal(proposal store.Proposal) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := RecordFromProposal(proposal)
	go func() {
		if err := s.meili.IndexProposal(record); err != nil {
			s.logger.Warn("index proposal failed", "proposal_id", record.ID, "error", err)
		}
	}()
}

// ReindexAllFromPG reindexes every stored proposal into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Error("reindex load failed", "error", err)
		return
	}
	if err := s.meili.IndexProposals(records); err != nil {
		s.logger.Error("reindex proposals failed", "error", err)
		return
	}
	s.logger.Info("proposals reindexed", "count", len(records))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
