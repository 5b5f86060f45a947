// Package identity maps PASS and BNL identifiers onto local facilities,
// beamlines and usernames.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"facilitysync/internal/logger"
	"facilitysync/internal/store"
)

type Kind string

const (
	KindFacility Kind = "facility"
	KindBeamline Kind = "beamline"
	KindCycle    Kind = "cycle"
	KindProposal Kind = "proposal"
	KindPerson   Kind = "person"
)

// LookupError reports a referenced entity that has no local counterpart.
// Callers decide whether it is fatal (top-level target) or skippable (nested item).
type LookupError struct {
	Kind Kind
	Key  string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %q could not be resolved", e.Kind, e.Key)
}

func (e *LookupError) Unwrap() error { return e.Err }

// IsLookup reports whether err is a LookupError of the given kind. An empty
// kind matches any LookupError.
func IsLookup(err error, kind Kind) bool {
	var lookupErr *LookupError
	if !errors.As(err, &lookupErr) {
		return false
	}
	return kind == "" || lookupErr.Kind == kind
}

// AsLookup converts a store.ErrNotFound into a LookupError and passes every
// other error through.
func AsLookup(err error, kind Kind, key string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return &LookupError{Kind: kind, Key: key, Err: err}
	}
	return err
}

type Lookups interface {
	GetFacility(ctx context.Context, id string) (store.Facility, error)
	FacilityByPassID(ctx context.Context, passFacilityID string) (store.Facility, error)
	BeamlineByPassID(ctx context.Context, passResourceID string) (store.Beamline, error)
}

// Directory resolves a BNL id to an account name.
type Directory interface {
	UsernameByID(ctx context.Context, bnlID string) (string, error)
}

type Resolver struct {
	lookups   Lookups
	directory Directory
	logger    *slog.Logger
}

func NewResolver(lookups Lookups, directory Directory, log *slog.Logger) *Resolver {
	return &Resolver{lookups: lookups, directory: directory, logger: log}
}

func (r *Resolver) Facility(ctx context.Context, id string) (store.Facility, error) {
	facility, err := r.lookups.GetFacility(ctx, id)
	return facility, AsLookup(err, KindFacility, id)
}

func (r *Resolver) FacilityByPassID(ctx context.Context, passFacilityID string) (store.Facility, error) {
	facility, err := r.lookups.FacilityByPassID(ctx, passFacilityID)
	return facility, AsLookup(err, KindFacility, passFacilityID)
}

func (r *Resolver) BeamlineByPassID(ctx context.Context, passResourceID string) (store.Beamline, error) {
	beamline, err := r.lookups.BeamlineByPassID(ctx, passResourceID)
	return beamline, AsLookup(err, KindBeamline, passResourceID)
}

// Beamlines resolves PASS resource ids to beamline names, silently dropping
// the ones with no local beamline. Other store failures are returned.
func (r *Resolver) Beamlines(ctx context.Context, passResourceIDs []string) ([]string, error) {
	names := make([]string, 0, len(passResourceIDs))
	for _, resourceID := range passResourceIDs {
		beamline, err := r.BeamlineByPassID(ctx, resourceID)
		if IsLookup(err, KindBeamline) {
			logger.FromContext(ctx, r.logger).Debug("skipping unknown pass resource", "resource_id", resourceID)
			continue
		}
		if err != nil {
			return nil, err
		}
		names = append(names, beamline.Name)
	}
	return names, nil
}

// Username never fails: directory errors are logged and degrade to nil.
func (r *Resolver) Username(ctx context.Context, bnlID string) *string {
	bnlID = strings.TrimSpace(bnlID)
	if bnlID == "" || r.directory == nil {
		return nil
	}
	username, err := r.directory.UsernameByID(ctx, bnlID)
	if err != nil {
		logger.FromContext(ctx, r.logger).Error("could not find BNL username", "bnl_id", bnlID, "error", err)
		return nil
	}
	return &username
}
