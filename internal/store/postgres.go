package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type PostgresStore struct {
	db    *sql.DB
	types *pgtype.Map
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, types: pgtype.NewMap()}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// textArray adapts a []string destination for scanning a TEXT[] column
// through database/sql.
func (s *PostgresStore) textArray(dst *[]string) sql.Scanner {
	return s.types.SQLScanner(dst)
}

func (s *PostgresStore) SaveFacility(ctx context.Context, facility Facility) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facilities (id, name, pass_code, pass_facility_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, pass_code=EXCLUDED.pass_code, pass_facility_id=EXCLUDED.pass_facility_id
	`, facility.ID, facility.Name, facility.PassCode, facility.PassFacilityID)
	if err != nil {
		return fmt.Errorf("save facility %s: %w", facility.ID, err)
	}
	return nil
}

func (s *PostgresStore) SaveBeamline(ctx context.Context, beamline Beamline) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO beamlines (name, facility_id, pass_resource_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET facility_id=EXCLUDED.facility_id, pass_resource_id=EXCLUDED.pass_resource_id
	`, beamline.Name, beamline.FacilityID, beamline.PassResourceID)
	if err != nil {
		return fmt.Errorf("save beamline %s: %w", beamline.Name, err)
	}
	return nil
}

func (s *PostgresStore) GetFacility(ctx context.Context, id string) (Facility, error) {
	var facility Facility
	err := s.db.QueryRowContext(ctx, `SELECT id, name, pass_code, pass_facility_id FROM facilities WHERE id=$1`, id).
		Scan(&facility.ID, &facility.Name, &facility.PassCode, &facility.PassFacilityID)
	if errors.Is(err, sql.ErrNoRows) {
		return Facility{}, fmt.Errorf("facility %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Facility{}, fmt.Errorf("get facility %s: %w", id, err)
	}
	return facility, nil
}

func (s *PostgresStore) FacilityByPassID(ctx context.Context, passFacilityID string) (Facility, error) {
	var facility Facility
	err := s.db.QueryRowContext(ctx, `SELECT id, name, pass_code, pass_facility_id FROM facilities WHERE pass_facility_id=$1`, passFacilityID).
		Scan(&facility.ID, &facility.Name, &facility.PassCode, &facility.PassFacilityID)
	if errors.Is(err, sql.ErrNoRows) {
		return Facility{}, fmt.Errorf("facility with pass id %s: %w", passFacilityID, ErrNotFound)
	}
	if err != nil {
		return Facility{}, fmt.Errorf("lookup facility by pass id: %w", err)
	}
	return facility, nil
}

func (s *PostgresStore) BeamlineByPassID(ctx context.Context, passResourceID string) (Beamline, error) {
	var beamline Beamline
	err := s.db.QueryRowContext(ctx, `SELECT name, facility_id, pass_resource_id FROM beamlines WHERE pass_resource_id=$1`, passResourceID).
		Scan(&beamline.Name, &beamline.FacilityID, &beamline.PassResourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return Beamline{}, fmt.Errorf("beamline with pass id %s: %w", passResourceID, ErrNotFound)
	}
	if err != nil {
		return Beamline{}, fmt.Errorf("lookup beamline by pass id: %w", err)
	}
	return beamline, nil
}

func (s *PostgresStore) ListFacilities(ctx context.Context) ([]Facility, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, pass_code, pass_facility_id FROM facilities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	defer rows.Close()

	var facilities []Facility
	for rows.Next() {
		var facility Facility
		if err := rows.Scan(&facility.ID, &facility.Name, &facility.PassCode, &facility.PassFacilityID); err != nil {
			return nil, fmt.Errorf("scan facility: %w", err)
		}
		facilities = append(facilities, facility)
	}
	return facilities, rows.Err()
}

const cycleColumns = `name, facility_id, year, start_date, end_date, accepting_proposals, pass_description, pass_id, proposals, last_updated`

func (s *PostgresStore) scanCycle(row interface{ Scan(...any) error }) (Cycle, error) {
	var cycle Cycle
	err := row.Scan(
		&cycle.Name, &cycle.FacilityID, &cycle.Year, &cycle.StartDate, &cycle.EndDate,
		&cycle.AcceptingProposals, &cycle.PassDescription, &cycle.PassID,
		s.textArray(&cycle.Proposals), &cycle.LastUpdated,
	)
	if cycle.Proposals == nil {
		cycle.Proposals = []string{}
	}
	return cycle, err
}

// UpsertCycle overwrites the PASS-owned cycle fields. The proposals column is
// only initialised on insert; AddCycleProposals grows it afterwards.
func (s *PostgresStore) UpsertCycle(ctx context.Context, update CycleUpdate) (Cycle, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO cycles (name, facility_id, year, start_date, end_date, accepting_proposals, pass_description, pass_id, proposals, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '{}', $9)
		ON CONFLICT (name) DO UPDATE SET
			facility_id=EXCLUDED.facility_id,
			year=EXCLUDED.year,
			start_date=EXCLUDED.start_date,
			end_date=EXCLUDED.end_date,
			accepting_proposals=EXCLUDED.accepting_proposals,
			pass_description=EXCLUDED.pass_description,
			pass_id=EXCLUDED.pass_id,
			last_updated=EXCLUDED.last_updated
		RETURNING `+cycleColumns,
		update.Name, update.FacilityID, update.Year, update.StartDate, update.EndDate,
		update.AcceptingProposals, update.PassDescription, update.PassID, update.LastUpdated,
	)
	cycle, err := s.scanCycle(row)
	if err != nil {
		return Cycle{}, fmt.Errorf("upsert cycle %s: %w", update.Name, err)
	}
	return cycle, nil
}

func (s *PostgresStore) AddCycleProposals(ctx context.Context, cycleName string, proposalIDs []string, updatedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cycles SET
			proposals = proposals || ARRAY(
				SELECT x FROM unnest($2::text[]) WITH ORDINALITY AS t(x, n)
				WHERE x <> ALL(proposals)
				GROUP BY x ORDER BY min(n)
			),
			last_updated = $3
		WHERE name = $1
	`, cycleName, proposalIDs, updatedAt)
	if err != nil {
		return fmt.Errorf("add proposals to cycle %s: %w", cycleName, err)
	}
	return expectOneRow(result, fmt.Sprintf("cycle %s", cycleName))
}

func (s *PostgresStore) GetCycle(ctx context.Context, name string) (Cycle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE name=$1`, name)
	cycle, err := s.scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Cycle{}, fmt.Errorf("cycle %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return Cycle{}, fmt.Errorf("get cycle %s: %w", name, err)
	}
	return cycle, nil
}

func (s *PostgresStore) ListCycles(ctx context.Context, facilityID string) ([]Cycle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE ($1 = '' OR facility_id = $1) ORDER BY name`, facilityID)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		cycle, err := s.scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		cycles = append(cycles, cycle)
	}
	return cycles, rows.Err()
}

func (s *PostgresStore) UpsertProposalType(ctx context.Context, proposalType ProposalType) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO proposal_types (pass_id, code, facility_id, description, pass_description, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pass_id) DO UPDATE SET
			code=EXCLUDED.code,
			facility_id=EXCLUDED.facility_id,
			description=EXCLUDED.description,
			pass_description=EXCLUDED.pass_description,
			last_updated=EXCLUDED.last_updated
	`, proposalType.PassID, proposalType.Code, proposalType.FacilityID, proposalType.Description, proposalType.PassDescription, proposalType.LastUpdated)
	if err != nil {
		return fmt.Errorf("upsert proposal type %s: %w", proposalType.PassID, err)
	}
	return nil
}

func (s *PostgresStore) ListProposalTypes(ctx context.Context, facilityID string) ([]ProposalType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pass_id, code, facility_id, description, pass_description, last_updated
		FROM proposal_types
		WHERE ($1 = '' OR facility_id = $1)
		ORDER BY pass_id
	`, facilityID)
	if err != nil {
		return nil, fmt.Errorf("list proposal types: %w", err)
	}
	defer rows.Close()

	var proposalTypes []ProposalType
	for rows.Next() {
		var item ProposalType
		if err := rows.Scan(&item.PassID, &item.Code, &item.FacilityID, &item.Description, &item.PassDescription, &item.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan proposal type: %w", err)
		}
		proposalTypes = append(proposalTypes, item)
	}
	return proposalTypes, rows.Err()
}

// UpsertProposal replaces every reconciler-owned column. cycles is only
// initialised on insert.
func (s *PostgresStore) UpsertProposal(ctx context.Context, update ProposalUpdate) error {
	safetyForms, err := json.Marshal(nonNilForms(update.SafetyForms))
	if err != nil {
		return fmt.Errorf("marshal safety forms: %w", err)
	}
	users, err := json.Marshal(nonNilUsers(update.Users))
	if err != nil {
		return fmt.Errorf("marshal users: %w", err)
	}
	instruments := update.Instruments
	if instruments == nil {
		instruments = []string{}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO proposals (proposal_id, title, data_session, pass_type_id, type, instruments, safety_forms, users, cycles, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '{}', $9)
		ON CONFLICT (proposal_id) DO UPDATE SET
			title=EXCLUDED.title,
			data_session=EXCLUDED.data_session,
			pass_type_id=EXCLUDED.pass_type_id,
			type=EXCLUDED.type,
			instruments=EXCLUDED.instruments,
			safety_forms=EXCLUDED.safety_forms,
			users=EXCLUDED.users,
			last_updated=EXCLUDED.last_updated
	`, update.ProposalID, update.Title, update.DataSession, update.PassTypeID, update.Type,
		instruments, safetyForms, users, update.LastUpdated)
	if err != nil {
		return fmt.Errorf("upsert proposal %s: %w", update.ProposalID, err)
	}
	return nil
}

func (s *PostgresStore) GetProposal(ctx context.Context, proposalID string) (Proposal, error) {
	var (
		proposal    Proposal
		safetyForms []byte
		users       []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT proposal_id, title, data_session, pass_type_id, type, instruments, safety_forms, users, cycles, last_updated
		FROM proposals WHERE proposal_id=$1
	`, proposalID).Scan(
		&proposal.ProposalID, &proposal.Title, &proposal.DataSession, &proposal.PassTypeID, &proposal.Type,
		s.textArray(&proposal.Instruments), &safetyForms, &users, s.textArray(&proposal.Cycles), &proposal.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Proposal{}, fmt.Errorf("proposal %s: %w", proposalID, ErrNotFound)
	}
	if err != nil {
		return Proposal{}, fmt.Errorf("get proposal %s: %w", proposalID, err)
	}
	if err := json.Unmarshal(safetyForms, &proposal.SafetyForms); err != nil {
		return Proposal{}, fmt.Errorf("decode safety forms for %s: %w", proposalID, err)
	}
	if err := json.Unmarshal(users, &proposal.Users); err != nil {
		return Proposal{}, fmt.Errorf("decode users for %s: %w", proposalID, err)
	}
	if proposal.Cycles == nil {
		proposal.Cycles = []string{}
	}
	return proposal, nil
}

func (s *PostgresStore) AddProposalCycle(ctx context.Context, proposalID, cycleName string, updatedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE proposals SET
			cycles = CASE WHEN $2 = ANY(cycles) THEN cycles ELSE array_append(cycles, $2) END,
			last_updated = $3
		WHERE proposal_id = $1
	`, proposalID, cycleName, updatedAt)
	if err != nil {
		return fmt.Errorf("add cycle %s to proposal %s: %w", cycleName, proposalID, err)
	}
	return expectOneRow(result, fmt.Sprintf("proposal %s", proposalID))
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func expectOneRow(result sql.Result, label string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", label, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", label, ErrNotFound)
	}
	return nil
}

func nonNilForms(forms []SafetyForm) []SafetyForm {
	if forms == nil {
		return []SafetyForm{}
	}
	out := make([]SafetyForm, len(forms))
	for i, form := range forms {
		if form.Instruments == nil {
			form.Instruments = []string{}
		}
		out[i] = form
	}
	return out
}

func nonNilUsers(users []User) []User {
	if users == nil {
		return []User{}
	}
	return users
}
