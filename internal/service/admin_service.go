package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"englishmastery/internal/models"
	"englishmastery/internal/repository"
)

const exportSheet = "Users"

type AdminUserFilter struct {
	Role     models.UserRole
	Status   models.UserStatus
	IsActive *bool
	Page     int
	PerPage  int
}

// AdminService backs the moderation endpoints. Users are never deleted.
type AdminService struct {
	users UserStore
	queue TaskQueue
	log   zerolog.Logger
}

func NewAdminService(users UserStore, queue TaskQueue, log zerolog.Logger) *AdminService {
	return &AdminService{
		users: users,
		queue: queue,
		log:   log,
	}
}

func (s *AdminService) ListUsers(ctx context.Context, filter AdminUserFilter) ([]UserView, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, invalid("unknown role %q", filter.Role)
	}
	limit, offset := normalizePage(filter.Page, filter.PerPage)

	rows, err := s.users.List(ctx, repository.UserFilter{
		Role:     filter.Role,
		Status:   filter.Status,
		IsActive: filter.IsActive,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]UserView, 0, len(rows))
	for _, u := range rows {
		out = append(out, newUserView(u))
	}
	return out, nil
}

func mapUserErr(err error, action string) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", action, err)
}

func (s *AdminService) Approve(ctx context.Context, userID string) error {
	if err := s.users.UpdateStatus(ctx, userID, models.UserStatusApproved); err != nil {
		return mapUserErr(err, "approve user")
	}
	s.log.Info().Str("user_id", userID).Msg("user approved")
	return nil
}

func (s *AdminService) Reject(ctx context.Context, userID string) error {
	if err := s.users.UpdateStatus(ctx, userID, models.UserStatusRejected); err != nil {
		return mapUserErr(err, "reject user")
	}
	s.log.Info().Str("user_id", userID).Msg("user rejected")
	return nil
}

func (s *AdminService) ChangeRole(ctx context.Context, actorID, userID string, role models.UserRole) error {
	if !role.Valid() {
		return invalid("unknown role %q", role)
	}
	if actorID == userID && role != models.UserRoleAdmin {
		return invalid("admins cannot demote themselves")
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return mapUserErr(err, "change role")
	}
	s.log.Info().Str("user_id", userID).Str("role", string(role)).Msg("user role changed")
	return nil
}

// SetActive is the soft delete switch.
func (s *AdminService) SetActive(ctx context.Context, actorID, userID string, active bool) error {
	if actorID == userID && !active {
		return invalid("admins cannot deactivate themselves")
	}
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		return mapUserErr(err, "set user active")
	}
	s.log.Info().Str("user_id", userID).Bool("active", active).Msg("user activation changed")
	return nil
}

func (s *AdminService) TriggerDailyRefresh(ctx context.Context, actorID string) error {
	if s.queue == nil {
		return errors.New("task queue not configured")
	}
	return s.queue.Enqueue(ctx, TaskDailyRefresh, map[string]any{"requestedBy": actorID})
}

var exportHeader = []any{"ID", "Email", "Display name", "Username", "Role", "Status", "Active", "Points", "Level", "Last active", "Created"}

// ExportUsers writes every user matching filter as an XLSX workbook.
func (s *AdminService) ExportUsers(ctx context.Context, filter AdminUserFilter, w io.Writer) (int, error) {
	rows, err := s.users.List(ctx, repository.UserFilter{
		Role:     filter.Role,
		Status:   filter.Status,
		IsActive: filter.IsActive,
	})
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	for i, u := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		lastActive := ""
		if u.User.LastActiveAt != nil {
			lastActive = u.User.LastActiveAt.UTC().Format(time.RFC3339)
		}
		row := []any{
			u.User.ID,
			u.User.Email,
			displayNameOf(u),
			deref(u.Profile.Username),
			string(u.User.Role),
			string(u.User.Status),
			u.User.IsActive,
			u.User.Points,
			u.User.Level,
			lastActive,
			u.User.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return 0, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(rows), nil
}
