package services

import (
	"blueprints-server/core"
	"blueprints-server/filters"
	"context"

	"github.com/sirupsen/logrus"
)

// BlueprintService is the only user of the store and the filter. The filter
// runs on single blueprint lookups only; listings and mutations see the
// stored points untouched.
type BlueprintService struct {
	store  core.BlueprintStore
	filter core.BlueprintFilter
}

// NewBlueprintService wires a store with the process-wide filter. A nil
// filter means the identity filter.
func NewBlueprintService(store core.BlueprintStore, filter core.BlueprintFilter) *BlueprintService {
	if filter == nil {
		filter = filters.Identity{}
	}
	logrus.WithField("filter", filters.Name(filter)).Info("Blueprint filter selected")
	return &BlueprintService{store: store, filter: filter}
}

func (s *BlueprintService) AddNewBlueprint(ctx context.Context, bp core.Blueprint) error {
	if err := s.store.Create(ctx, bp); err != nil {
		logFailure(err, bp.Author, bp.Name).Debug("Create blueprint failed")
		return err
	}
	return nil
}

func (s *BlueprintService) GetAllBlueprints(ctx context.Context) ([]core.Blueprint, error) {
	return s.store.List(ctx)
}

func (s *BlueprintService) GetBlueprintsByAuthor(ctx context.Context, author string) ([]core.Blueprint, error) {
	bps, err := s.store.ListByAuthor(ctx, author)
	if err != nil {
		logFailure(err, author, "").Debug("List blueprints by author failed")
		return nil, err
	}
	return bps, nil
}

// GetBlueprint is the one read path that goes through the filter.
func (s *BlueprintService) GetBlueprint(ctx context.Context, author, name string) (core.Blueprint, error) {
	bp, err := s.store.Get(ctx, author, name)
	if err != nil {
		logFailure(err, author, name).Debug("Get blueprint failed")
		return core.Blueprint{}, err
	}
	return s.filter.Apply(bp), nil
}

func (s *BlueprintService) AddPoint(ctx context.Context, author, name string, x, y int) error {
	if err := s.store.AppendPoint(ctx, author, name, core.Point{X: x, Y: y}); err != nil {
		logFailure(err, author, name).Debug("Add point failed")
		return err
	}
	return nil
}

func logFailure(err error, author, name string) *logrus.Entry {
	fields := logrus.Fields{"author": author}
	if name != "" {
		fields["name"] = name
	}
	return logrus.WithFields(fields).WithError(err)
}
