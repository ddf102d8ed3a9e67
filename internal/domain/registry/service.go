package registry

import (
	"context"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/security"
)

// Service resolves tanks and meters on behalf of the acting user.
type Service struct {
	repo   Repository
	policy security.Policy
}

// NewService creates a new registry service.
func NewService(repo Repository, policy security.Policy) *Service {
	return &Service{repo: repo, policy: policy}
}

// Repo exposes the underlying repository to sibling services.
func (s *Service) Repo() Repository {
	return s.repo
}

// TankForUser loads a tank and checks the user may act on its station.
func (s *Service) TankForUser(ctx context.Context, tankID id.ID) (*Tank, error) {
	tank, err := s.repo.GetTank(ctx, tankID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireStationAccess(ctx, tank.StationID.String()); err != nil {
		return nil, err
	}
	return tank, nil
}

// MeterForUser loads a meter with its tank and checks station access.
func (s *Service) MeterForUser(ctx context.Context, meterID id.ID) (*Meter, *Tank, error) {
	meter, err := s.repo.GetMeter(ctx, meterID)
	if err != nil {
		return nil, nil, err
	}
	tank, err := s.TankForUser(ctx, meter.TankID)
	if err != nil {
		return nil, nil, err
	}
	return meter, tank, nil
}

// ListTanks returns tanks visible to the user, optionally for one station.
func (s *Service) ListTanks(ctx context.Context, stationID *id.ID) ([]Tank, error) {
	station, err := security.StationFilter(ctx, stationID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTanks(ctx, TankFilter{StationID: station})
}
