package variance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/apperror"
	appctx "fuelstation/internal/core/context"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/security"
	"fuelstation/internal/core/tx"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/registry"
	"fuelstation/pkg/logger"
)

// Repository persists notifications.
type Repository interface {
	// FindLatestForUpdate locks and returns the most recent notification for (tank, date, type), any status.
	FindLatestForUpdate(ctx context.Context, tankID id.ID, date time.Time, notificationType string) (*Notification, error)
	Get(ctx context.Context, notificationID id.ID) (*Notification, error)
	GetForUpdate(ctx context.Context, notificationID id.ID) (*Notification, error)
	Create(ctx context.Context, n *Notification) error
	Update(ctx context.Context, n *Notification) error
	// DeleteUnresolvedByReconciliation removes derived, not yet resolved notifications.
	DeleteUnresolvedByReconciliation(ctx context.Context, reconciliationID id.ID) (int64, error)
	List(ctx context.Context, filter Filter) ([]Notification, error)
}

// Service is the variance notifier.
type Service struct {
	repo       Repository
	tanks      registry.Repository
	policy     security.Policy
	txm        tx.Manager
	thresholds Thresholds
	now        func() time.Time
}

// NewService creates a new variance notifier.
func NewService(repo Repository, tanks registry.Repository, policy security.Policy, txm tx.Manager, thresholds Thresholds) *Service {
	return &Service{
		repo:       repo,
		tanks:      tanks,
		policy:     policy,
		txm:        txm,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Thresholds returns the configured severity table.
func (s *Service) Thresholds() Thresholds {
	return s.thresholds
}

// NotifyInput is what a reconciliation hands off.
type NotifyInput struct {
	TankID             id.ID
	Date               time.Time
	ReconciliationID   id.ID
	VariancePercentage decimal.Decimal
	VolumeVariance     decimal.Decimal
}

// Notify raises or refreshes the notification for (tank, date).
// Nothing happens below the lowest threshold. An unresolved notification is updated in
// place; a resolved one is left as the investigation's outcome. Runs in the caller's tx.
func (s *Service) Notify(ctx context.Context, in NotifyInput) (*Notification, error) {
	severity := s.thresholds.Classify(in.VariancePercentage)
	if severity == SeverityNone {
		return nil, nil
	}
	date := types.DateOnly(in.Date)
	recID := in.ReconciliationID
	magnitude := in.VolumeVariance.Abs()

	existing, err := s.repo.FindLatestForUpdate(ctx, in.TankID, date, TypeVolumeVariance)
	switch {
	case err == nil && existing.Status == StatusResolved:
		logger.Info(ctx, "variance already resolved, notification left unchanged",
			"notification_id", existing.ID,
			"tank_id", in.TankID,
			"date", types.FormatDate(date),
		)
		return existing, nil
	case err == nil:
		existing.Severity = severity
		existing.VariancePercentage = in.VariancePercentage
		existing.VarianceMagnitude = magnitude
		existing.ReconciliationID = &recID
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("update notification: %w", err)
		}
		logger.Info(ctx, "variance notification updated",
			"notification_id", existing.ID,
			"severity", severity,
			"variance_pct", in.VariancePercentage.String(),
		)
		return existing, nil
	case !apperror.IsNotFound(err):
		return nil, err
	}

	n := &Notification{
		ID:                 id.New(),
		TankID:             in.TankID,
		ReconciliationID:   &recID,
		NotificationType:   TypeVolumeVariance,
		NotificationDate:   date,
		Severity:           severity,
		VariancePercentage: in.VariancePercentage,
		VarianceMagnitude:  magnitude,
		Status:             StatusOpen,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	logger.Warn(ctx, "variance notification raised",
		"notification_id", n.ID,
		"tank_id", in.TankID,
		"date", types.FormatDate(date),
		"severity", severity,
		"variance_pct", in.VariancePercentage.String(),
	)
	return n, nil
}

// Retract removes the unresolved notifications derived from a reconciliation being reversed.
func (s *Service) Retract(ctx context.Context, reconciliationID id.ID) (int64, error) {
	return s.repo.DeleteUnresolvedByReconciliation(ctx, reconciliationID)
}

// Transition moves a notification through the investigation workflow.
// Only admin and manager may do this; resolving requires notes.
func (s *Service) Transition(ctx context.Context, notificationID id.ID, to Status, notes string) (*Notification, error) {
	if !to.Valid() {
		return nil, apperror.NewValidation("unknown status").WithDetail("status", to)
	}
	notes = strings.TrimSpace(notes)

	var result *Notification
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := s.repo.GetForUpdate(ctx, notificationID)
		if err != nil {
			return err
		}
		tank, err := s.tanks.GetTank(ctx, n.TankID)
		if err != nil {
			return err
		}
		if err := s.policy.RequireVarianceApproval(ctx, tank.StationID.String()); err != nil {
			logger.Warn(ctx, "variance transition denied", "notification_id", n.ID, "error", err)
			return err
		}
		if !CanTransition(n.Status, to) {
			return apperror.NewInvalidTransition(string(n.Status), string(to))
		}

		switch to {
		case StatusResolved:
			if notes == "" {
				return apperror.NewValidation("Resolution notes are required to resolve a variance")
			}
			by := appctx.GetUserID(ctx)
			at := s.now()
			n.ResolvedByUserID = &by
			n.ResolvedAt = &at
			n.ResolutionNotes = &notes
		default:
			n.ResolvedByUserID = nil
			n.ResolvedAt = nil
			if notes != "" {
				n.ResolutionNotes = &notes
			}
		}
		n.Status = to

		if err := s.repo.Update(ctx, n); err != nil {
			return fmt.Errorf("update notification: %w", err)
		}
		result = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "variance notification transitioned",
		"notification_id", notificationID,
		"status", to,
	)
	return result, nil
}

// Get returns one notification if the user may see its station.
func (s *Service) Get(ctx context.Context, notificationID id.ID) (*Notification, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	tank, err := s.tanks.GetTank(ctx, n.TankID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireStationAccess(ctx, tank.StationID.String()); err != nil {
		return nil, err
	}
	return n, nil
}

// List returns notifications visible to the user.
func (s *Service) List(ctx context.Context, filter Filter) ([]Notification, error) {
	station, err := security.StationFilter(ctx, filter.StationID)
	if err != nil {
		return nil, err
	}
	filter.StationID = station
	return s.repo.List(ctx, filter)
}
