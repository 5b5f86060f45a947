// Package registry loads the facility and beamline catalogue that the
// identity resolver matches PASS identifiers against.
package registry

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"facilitysync/internal/store"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultRegistry []byte

type Registry struct {
	Facilities []FacilityEntry `yaml:"facilities"`
}

type FacilityEntry struct {
	ID             string          `yaml:"id"`
	Name           string          `yaml:"name"`
	PassCode       string          `yaml:"pass_code"`
	PassFacilityID string          `yaml:"pass_facility_id"`
	Beamlines      []BeamlineEntry `yaml:"beamlines"`
}

type BeamlineEntry struct {
	Name           string `yaml:"name"`
	PassResourceID string `yaml:"pass_resource_id"`
}

// Load reads the registry at path, or the embedded default when path is empty.
func Load(path string) (Registry, error) {
	data := defaultRegistry
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Registry{}, fmt.Errorf("read registry %s: %w", path, err)
		}
		data = raw
	}
	return Parse(data)
}

func Parse(data []byte) (Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return Registry{}, fmt.Errorf("decode registry: %w", err)
	}
	if err := reg.validate(); err != nil {
		return Registry{}, err
	}
	return reg, nil
}

func (r Registry) validate() error {
	if len(r.Facilities) == 0 {
		return fmt.Errorf("registry: no facilities defined")
	}
	facilityIDs := map[string]bool{}
	passFacilityIDs := map[string]bool{}
	resourceIDs := map[string]string{}
	for _, facility := range r.Facilities {
		if facility.ID == "" || facility.PassCode == "" || facility.PassFacilityID == "" {
			return fmt.Errorf("registry: facility %q needs id, pass_code and pass_facility_id", facility.ID)
		}
		if facilityIDs[facility.ID] {
			return fmt.Errorf("registry: duplicate facility %s", facility.ID)
		}
		if passFacilityIDs[facility.PassFacilityID] {
			return fmt.Errorf("registry: duplicate pass_facility_id %s", facility.PassFacilityID)
		}
		facilityIDs[facility.ID] = true
		passFacilityIDs[facility.PassFacilityID] = true
		for _, beamline := range facility.Beamlines {
			if beamline.Name == "" || beamline.PassResourceID == "" {
				return fmt.Errorf("registry: beamline in %s needs name and pass_resource_id", facility.ID)
			}
			if owner, ok := resourceIDs[beamline.PassResourceID]; ok {
				return fmt.Errorf("registry: pass_resource_id %s used by %s and %s", beamline.PassResourceID, owner, beamline.Name)
			}
			resourceIDs[beamline.PassResourceID] = beamline.Name
		}
	}
	return nil
}

// FacilityIDs lists the configured facility ids in file order.
func (r Registry) FacilityIDs() []string {
	ids := make([]string, 0, len(r.Facilities))
	for _, facility := range r.Facilities {
		ids = append(ids, facility.ID)
	}
	return ids
}

type seeder interface {
	SaveFacility(ctx context.Context, facility store.Facility) error
	SaveBeamline(ctx context.Context, beamline store.Beamline) error
}

// Seed writes every facility and beamline into the store. Existing rows are
// overwritten.
func (r Registry) Seed(ctx context.Context, s seeder) error {
	for _, facility := range r.Facilities {
		if err := s.SaveFacility(ctx, store.Facility{
			ID:             facility.ID,
			Name:           facility.Name,
			PassCode:       facility.PassCode,
			PassFacilityID: facility.PassFacilityID,
		}); err != nil {
			return err
		}
		for _, beamline := range facility.Beamlines {
			if err := s.SaveBeamline(ctx, store.Beamline{
				Name:           beamline.Name,
				FacilityID:     facility.ID,
				PassResourceID: beamline.PassResourceID,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
