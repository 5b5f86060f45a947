package search

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"facilitysync/internal/logger"
	"facilitysync/internal/store"
)

func TestRecordFromProposal(t *testing.T) {
	username := "pinv"
	record := RecordFromProposal(store.Proposal{
		ProposalID:  "300100",
		Title:       "Dynamics of soft matter",
		DataSession: "pass-300100",
		Users: []store.User{
			{FirstName: "Jane", LastName: "Doe"},
			{FirstName: "Pat", LastName: "Investigator", Username: &username, IsPI: true},
			{},
		},
	})

	if record.ID != "300100" || record.PI != "Pat Investigator" {
		t.Fatalf("unexpected record %+v", record)
	}
	if len(record.Users) != 2 {
		t.Fatalf("expected blank users to be dropped, got %v", record.Users)
	}
	if record.Instruments == nil || record.Cycles == nil {
		t.Fatal("expected empty slices, not nil")
	}
}

func TestPgFTSSearchWithFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM proposals WHERE search_vector @@ websearch_to_tsquery\('english', \$1\) AND \$2 = ANY\(instruments\) AND \$3 = ANY\(cycles\)`).
		WithArgs("soft matter", "CHX", "2024-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT proposal_id, title,`).
		WithArgs("soft matter", "CHX", "2024-1").
		WillReturnRows(sqlmock.NewRows([]string{"proposal_id", "title", "snippet", "type", "data_session", "instruments"}).
			AddRow("300100", "Dynamics of soft matter", "Dynamics of <b>soft</b> <b>matter</b>", "General User", "pass-300100", "{CHX,SMI}"))

	results, total, err := NewPgFTS(db).Search(Query{Text: "soft matter", Instrument: "CHX", Cycle: "2024-1"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 1 || len(results) != 1 {
		t.Fatalf("expected one result, got %d/%d", len(results), total)
	}
	if results[0].ProposalID != "300100" || len(results[0].Instruments) != 2 || results[0].Instruments[1] != "SMI" {
		t.Fatalf("unexpected result %+v", results[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPgFTSBlankQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	results, total, err := NewPgFTS(db).Search(Query{Text: "   "})
	if err != nil || total != 0 || results != nil {
		t.Fatalf("expected empty search, got %v %d %v", results, total, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadAllRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT proposal_id, title, type, data_session, instruments, cycles, users`).
		WillReturnRows(sqlmock.NewRows([]string{"proposal_id", "title", "type", "data_session", "instruments", "cycles", "users"}).
			AddRow("300100", "Soft matter", "General User", "pass-300100", "{CHX}", "{2024-1}",
				[]byte(`[{"first_name":"Pat","last_name":"Investigator","is_pi":true}]`)))

	records, err := NewPgFTS(db).LoadAllRecords(context.Background())
	if err != nil {
		t.Fatalf("LoadAllRecords: %v", err)
	}
	if len(records) != 1 || records[0].PI != "Pat Investigator" || records[0].Cycles[0] != "2024-1" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestServiceWithoutBackends(t *testing.T) {
	svc := NewService(nil, nil, logger.Discard())
	resp := svc.Search(Query{Text: "anything"})
	if resp.Results == nil || resp.Total != 0 || resp.Query != "anything" {
		t.Fatalf("unexpected response %+v", resp)
	}
	// Without Meilisearch indexing is a no-op.
	svc.IndexProposal(store.Proposal{ProposalID: "1"})
}

func TestServiceFallsBackToPgFTS(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.ExpectQuery(`SELECT count\(\*\)`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT proposal_id, title,`).
		WillReturnRows(sqlmock.NewRows([]string{"proposal_id", "title", "snippet", "type", "data_session", "instruments"}))

	resp := NewService(nil, NewPgFTS(db), logger.Discard()).Search(Query{Text: "crystal"})
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty non-nil results, got %+v", resp)
	}
}
