package dispute

import "context"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	if repo == nil {
		repo = StaticRepository{}
	}
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Record, error) {
	return s.repo.List(ctx, filters)
}
