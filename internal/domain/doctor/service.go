package doctor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/medportal/portal/internal/platform/auth"
	"github.com/medportal/portal/internal/platform/availability"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateDoctor registers a doctor profile. Admins only. A caller-supplied id
// lets the profile match the doctor's identity-provider subject.
func (s *Service) CreateDoctor(ctx context.Context, sess auth.Session, req CreateRequest) (*Doctor, error) {
	if !sess.IsAdmin() {
		return nil, auth.ErrForbidden
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return nil, fmt.Errorf("display_name is required")
	}
	d := &Doctor{DisplayName: name, Specialty: req.Specialty, Active: true}
	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid id: %w", err)
		}
		d.ID = id
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ActiveDoctors returns the directory entries search runs over.
func (s *Service) ActiveDoctors(ctx context.Context) ([]availability.Doctor, error) {
	items, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active doctors: %w", err)
	}
	out := make([]availability.Doctor, 0, len(items))
	for _, d := range items {
		entry := availability.Doctor{ID: d.ID.String(), DisplayName: d.DisplayName}
		if d.Specialty != nil {
			entry.Specialty = *d.Specialty
		}
		out = append(out, entry)
	}
	return out, nil
}
