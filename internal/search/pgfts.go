package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"facilitysync/internal/store"
)

// PgFTS implements Searcher on the proposals.search_vector column.
type PgFTS struct {
	db    *sql.DB
	types *pgtype.Map
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db, types: pgtype.NewMap()}
}

// Healthy always returns true: if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "websearch_to_tsquery('english', $1)"
	where := "search_vector @@ " + tsQuery
	args := []any{q.Text}
	if q.Instrument != "" {
		args = append(args, q.Instrument)
		where += fmt.Sprintf(" AND $%d = ANY(instruments)", len(args))
	}
	if q.Cycle != "" {
		args = append(args, q.Cycle)
		where += fmt.Sprintf(" AND $%d = ANY(cycles)", len(args))
	}

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM proposals WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`SELECT proposal_id, title,
			ts_headline('english', title, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			type, data_session, instruments
		FROM proposals
		WHERE %s
		ORDER BY ts_rank(search_vector, %s) DESC, proposal_id
		LIMIT %d OFFSET %d`, tsQuery, where, tsQuery, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ProposalID, &r.Title, &r.Snippet, &r.Type, &r.DataSession,
			p.types.SQLScanner(&r.Instruments)); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		if r.Instruments == nil {
			r.Instruments = []string{}
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every proposal as an index document for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ProposalRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT proposal_id, title, type, data_session, instruments, cycles, users
		FROM proposals
		ORDER BY proposal_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load proposals: %w", err)
	}
	defer rows.Close()

	records := make([]ProposalRecord, 0)
	for rows.Next() {
		var proposal store.Proposal
		var users []byte
		if err := rows.Scan(&proposal.ProposalID, &proposal.Title, &proposal.Type, &proposal.DataSession,
			p.types.SQLScanner(&proposal.Instruments), p.types.SQLScanner(&proposal.Cycles), &users); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		if len(users) > 0 {
			if err := json.Unmarshal(users, &proposal.Users); err != nil {
				return nil, fmt.Errorf("decode users of %s: %w", proposal.ProposalID, err)
			}
		}
		records = append(records, RecordFromProposal(proposal))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}
	return records, nil
}
