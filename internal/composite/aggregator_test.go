package composite

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/pawpal/composite-service/internal/executor"
	"github.com/pawpal/composite-service/internal/platform/apierr"
	"github.com/pawpal/composite-service/internal/platform/logger"
	"github.com/pawpal/composite-service/internal/upstream"
)

type fakeClient struct {
	name        string
	get         func(ctx context.Context, id string) (upstream.Record, error)
	getStats    func(ctx context.Context, id string) (upstream.Record, error)
	list        func(ctx context.Context, filters map[string]string) ([]upstream.Record, error)
	listByOwner func(ctx context.Context, ownerID string) ([]upstream.Record, error)
	create      func(ctx context.Context, payload upstream.Record) (upstream.Record, error)
	update      func(ctx context.Context, id string, payload upstream.Record) (upstream.Record, error)
	del         func(ctx context.Context, id string) (upstream.Record, error)
}

func (f *fakeClient) Name() string { return f.name }
func (f *fakeClient) Get(ctx context.Context, id string) (upstream.Record, error) {
	return f.get(ctx, id)
}
func (f *fakeClient) GetStats(ctx context.Context, id string) (upstream.Record, error) {
	return f.getStats(ctx, id)
}
func (f *fakeClient) List(ctx context.Context, filters map[string]string) ([]upstream.Record, error) {
	return f.list(ctx, filters)
}
func (f *fakeClient) ListByOwner(ctx context.Context, ownerID string) ([]upstream.Record, error) {
	return f.listByOwner(ctx, ownerID)
}
func (f *fakeClient) Search(ctx context.Context, query string, filters map[string]string) ([]upstream.Record, error) {
	return nil, nil
}
func (f *fakeClient) Create(ctx context.Context, payload upstream.Record) (upstream.Record, error) {
	return f.create(ctx, payload)
}
func (f *fakeClient) Update(ctx context.Context, id string, payload upstream.Record) (upstream.Record, error) {
	return f.update(ctx, id, payload)
}
func (f *fakeClient) Delete(ctx context.Context, id string) (upstream.Record, error) {
	return f.del(ctx, id)
}

func newAggregator(principals, dependents *fakeClient) *Aggregator {
	log := logger.NewNop()
	return NewAggregator(log, principals, dependents, executor.New(log, principals, dependents))
}

func TestGetPrincipalWithDependents(t *testing.T) {
	principals := &fakeClient{
		name: "principal",
		get: func(ctx context.Context, id string) (upstream.Record, error) {
			return upstream.Record{"id": id, "role": "owner"}, nil
		},
	}
	dependents := &fakeClient{
		name: "dependent",
		listByOwner: func(ctx context.Context, ownerID string) ([]upstream.Record, error) {
			return []upstream.Record{
				{"id": "d1", "ownerId": ownerID},
				{"id": "d2", "ownerId": ownerID},
			}, nil
		},
	}

	got, err := newAggregator(principals, dependents).GetPrincipalWithDependents(context.Background(), "5")
	if err != nil {
		t.Fatalf("GetPrincipalWithDependents: %v", err)
	}
	if got.Principal.ID() != "5" {
		t.Fatalf("principal id: want=%q got=%q", "5", got.Principal.ID())
	}
	for _, dep := range got.Dependents {
		if dep.StringField("ownerId") != "5" {
			t.Fatalf("dependent ownerId: want=%q got=%q", "5", dep.StringField("ownerId"))
		}
	}
}

func TestGetPrincipalWithDependentsFailsWhenPrincipalFetchFails(t *testing.T) {
	principals := &fakeClient{
		name: "principal",
		get: func(ctx context.Context, id string) (upstream.Record, error) {
			return nil, apierr.NotFound(fmt.Sprintf("User with id %s not found", id))
		},
	}
	dependents := &fakeClient{
		name: "dependent",
		listByOwner: func(ctx context.Context, ownerID string) ([]upstream.Record, error) {
			return []upstream.Record{{"id": "d1", "ownerId": ownerID}}, nil
		},
	}

	got, err := newAggregator(principals, dependents).GetPrincipalWithDependents(context.Background(), "404")
	if err == nil {
		t.Fatalf("expected error, got result %v", got)
	}
	if got != nil {
		t.Fatalf("dependents must never be returned orphaned, got %v", got)
	}
	if apierr.StatusOf(err) != 404 {
		t.Fatalf("status: want=404 got=%d", apierr.StatusOf(err))
	}
}

func TestGetPrincipalComplete(t *testing.T) {
	principals := &fakeClient{
		name: "principal",
		get: func(ctx context.Context, id string) (upstream.Record, error) {
			return upstream.Record{"id": id}, nil
		},
		getStats: func(ctx context.Context, id string) (upstream.Record, error) {
			return upstream.Record{"dependentCount": 2}, nil
		},
	}
	dependents := &fakeClient{
		name: "dependent",
		listByOwner: func(ctx context.Context, ownerID string) ([]upstream.Record, error) {
			return []upstream.Record{{"id": "d1"}, {"id": "d2"}}, nil
		},
	}

	got, err := newAggregator(principals, dependents).GetPrincipalComplete(context.Background(), "5")
	if err != nil {
		t.Fatalf("GetPrincipalComplete: %v", err)
	}
	if len(got.Dependents) != 2 {
		t.Fatalf("dependents: want=2 got=%d", len(got.Dependents))
	}
	if got.Stats.StringField("dependentCount") != "2" {
		t.Fatalf("stats: want dependentCount=2 got=%v", got.Stats)
	}
}

func TestGetPrincipalCompleteFailsWhenStatsFetchFails(t *testing.T) {
	principals := &fakeClient{
		name: "principal",
		get: func(ctx context.Context, id string) (upstream.Record, error) {
			return upstream.Record{"id": id}, nil
		},
		getStats: func(ctx context.Context, id string) (upstream.Record, error) {
			return nil, apierr.Unavailable("principal service unavailable", nil)
		},
	}
	dependents := &fakeClient{
		name: "dependent",
		listByOwner: func(ctx context.Context, ownerID string) ([]upstream.Record, error) {
			return []upstream.Record{}, nil
		},
	}

	if _, err := newAggregator(principals, dependents).GetPrincipalComplete(context.Background(), "5"); err == nil {
		t.Fatalf("expected error when stats fetch fails")
	}
}

func TestListPrincipalsWithDependentsTruncatesToTen(t *testing.T) {
	var listed []upstream.Record
	for i := 0; i < 12; i++ {
		listed = append(listed, upstream.Record{"id": strconv.Itoa(i), "role": "owner"})
	}
	principals := &fakeClient{
		name: "principal",
		list: func(ctx context.Context, filters map[string]string) ([]upstream.Record, error) {
			return listed, nil
		},
	}
	var fetches atomic.Int32
	dependents := &fakeClient{
		name: "dependent",
		listByOwner: func(ctx context.Context, ownerID string) ([]upstream.Record, error) {
			fetches.Add(1)
			return []upstream.Record{{"id": "d-" + ownerID, "ownerId": ownerID}}, nil
		},
	}

	entries, err := newAggregator(principals, dependents).ListPrincipalsWithDependents(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListPrincipalsWithDependents: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("entries: want=10 got=%d", len(entries))
	}
	if got := fetches.Load(); got != 10 {
		t.Fatalf("dependents fetches: want=10 got=%d", got)
	}
	// output order matches the principal list order
	for i, entry := range entries {
		if entry.ID() != strconv.Itoa(i) {
			t.Fatalf("entry %d: want id=%d got=%q", i, i, entry.ID())
		}
	}
}

func TestListPrincipalsWithDependentsDegradesPerItem(t *testing.T) {
	principals := &fakeClient{
		name: "principal",
		list: func(ctx context.Context, filters map[string]string) ([]upstream.Record, error) {
			return []upstream.Record{
				{"id": "1", "role": "owner"},
				{"id": "2", "role": "owner"},
			}, nil
		},
	}
	dependents := &fakeClient{
		name: "dependent",
		listByOwner: func(ctx context.Context, ownerID string) ([]upstream.Record, error) {
			if ownerID == "2" {
				return nil, apierr.Unavailable("dependent service unavailable", nil)
			}
			return []upstream.Record{{"id": "d1", "ownerId": ownerID}}, nil
		},
	}

	entries, err := newAggregator(principals, dependents).ListPrincipalsWithDependents(context.Background(), nil)
	if err != nil {
		t.Fatalf("a per-item failure must not fail the batch: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: want=2 got=%d", len(entries))
	}
	if _, annotated := entries[0]["error"]; annotated {
		t.Fatalf("entry 1 should not carry an error marker")
	}
	if deps := entries[1]["dependents"].([]upstream.Record); len(deps) != 0 {
		t.Fatalf("failed entry dependents: want empty got=%v", deps)
	}
	if got := entries[1].StringField("error"); got != "Failed to fetch dependents" {
		t.Fatalf("error marker: want=%q got=%q", "Failed to fetch dependents", got)
	}
}

func TestDeletePrincipalCascade(t *testing.T) {
	principals := &fakeClient{
		name: "principal",
		del: func(ctx context.Context, id string) (upstream.Record, error) {
			return upstream.Record{"id": id, "role": "owner"}, nil
		},
	}
	var deleted atomic.Int32
	dependents := &fakeClient{
		name: "dependent",
		listByOwner: func(ctx context.Context, ownerID string) ([]upstream.Record, error) {
			return []upstream.Record{{"id": "d1"}, {"id": "d2"}, {"id": "d3"}}, nil
		},
		del: func(ctx context.Context, id string) (upstream.Record, error) {
			deleted.Add(1)
			return upstream.Record{"id": id}, nil
		},
	}

	got, err := newAggregator(principals, dependents).DeletePrincipalCascade(context.Background(), "5")
	if err != nil {
		t.Fatalf("DeletePrincipalCascade: %v", err)
	}
	if got.DeletedDependentsCount != 3 {
		t.Fatalf("deletedDependentsCount: want=3 got=%d", got.DeletedDependentsCount)
	}
	if deleted.Load() != 3 {
		t.Fatalf("dependent deletes issued: want=3 got=%d", deleted.Load())
	}
	if got.Principal.ID() != "5" {
		t.Fatalf("principal: want id=5 got=%v", got.Principal)
	}
}

func TestDeletePrincipalCascadeAbortsBeforePrincipalDelete(t *testing.T) {
	var principalDeletes atomic.Int32
	principals := &fakeClient{
		name: "principal",
		del: func(ctx context.Context, id string) (upstream.Record, error) {
			principalDeletes.Add(1)
			return upstream.Record{"id": id}, nil
		},
	}
	dependents := &fakeClient{
		name: "dependent",
		listByOwner: func(ctx context.Context, ownerID string) ([]upstream.Record, error) {
			return []upstream.Record{{"id": "d1"}, {"id": "d2"}}, nil
		},
		del: func(ctx context.Context, id string) (upstream.Record, error) {
			if id == "d2" {
				return nil, apierr.Upstream(500, "delete failed", nil)
			}
			return upstream.Record{"id": id}, nil
		},
	}

	_, err := newAggregator(principals, dependents).DeletePrincipalCascade(context.Background(), "5")
	if err == nil {
		t.Fatalf("expected cascade failure")
	}
	if principalDeletes.Load() != 0 {
		t.Fatalf("principal delete must never be issued after a dependent delete failure")
	}
}

func TestDeletePrincipalCascadeNoDependents(t *testing.T) {
	principals := &fakeClient{
		name: "principal",
		del: func(ctx context.Context, id string) (upstream.Record, error) {
			return upstream.Record{"id": id}, nil
		},
	}
	dependents := &fakeClient{
		name: "dependent",
		listByOwner: func(ctx context.Context, ownerID string) ([]upstream.Record, error) {
			return []upstream.Record{}, nil
		},
	}

	got, err := newAggregator(principals, dependents).DeletePrincipalCascade(context.Background(), "5")
	if err != nil {
		t.Fatalf("DeletePrincipalCascade: %v", err)
	}
	if got.DeletedDependentsCount != 0 {
		t.Fatalf("deletedDependentsCount: want=0 got=%d", got.DeletedDependentsCount)
	}
}

func TestGetAggregateStats(t *testing.T) {
	var principalFilters, dependentFilters map[string]string
	principals := &fakeClient{
		name: "principal",
		list: func(ctx context.Context, filters map[string]string) ([]upstream.Record, error) {
			principalFilters = filters
			return []upstream.Record{
				{"id": "1", "role": "owner"},
				{"id": "2", "role": "owner"},
				{"id": "3", "role": "admin"},
				{"id": "4"},
			}, nil
		},
	}
	dependents := &fakeClient{
		name: "dependent",
		list: func(ctx context.Context, filters map[string]string) ([]upstream.Record, error) {
			dependentFilters = filters
			return []upstream.Record{
				{"id": "d1", "size": "large", "energyLevel": "high"},
				{"id": "d2", "size": "small", "energyLevel": ""},
				{"id": "d3", "size": "large"},
			}, nil
		},
	}

	stats, err := newAggregator(principals, dependents).GetAggregateStats(context.Background())
	if err != nil {
		t.Fatalf("GetAggregateStats: %v", err)
	}
	if principalFilters["limit"] != "1000" || dependentFilters["limit"] != "1000" {
		t.Fatalf("limit filter: want=1000/1000 got=%v/%v", principalFilters, dependentFilters)
	}
	if stats.TotalPrincipals != 4 || stats.TotalDependents != 3 {
		t.Fatalf("totals: want=4/3 got=%d/%d", stats.TotalPrincipals, stats.TotalDependents)
	}
	if stats.ByRole["owner"] != 2 || stats.ByRole["admin"] != 1 || stats.ByRole["unknown"] != 1 {
		t.Fatalf("byRole: got=%v", stats.ByRole)
	}
	roleSum := 0
	for _, n := range stats.ByRole {
		roleSum += n
	}
	if roleSum != stats.TotalPrincipals {
		t.Fatalf("byRole sum: want=%d got=%d", stats.TotalPrincipals, roleSum)
	}
	if stats.ByEnergyLevel["high"] != 1 || stats.ByEnergyLevel["unknown"] != 2 {
		t.Fatalf("byEnergyLevel: got=%v", stats.ByEnergyLevel)
	}
	energySum := 0
	for _, n := range stats.ByEnergyLevel {
		energySum += n
	}
	if energySum != stats.TotalDependents {
		t.Fatalf("byEnergyLevel sum: want=%d got=%d", stats.TotalDependents, energySum)
	}
}

func TestGetAggregateStatsFailsWhenEitherFetchFails(t *testing.T) {
	principals := &fakeClient{
		name: "principal",
		list: func(ctx context.Context, filters map[string]string) ([]upstream.Record, error) {
			return []upstream.Record{{"id": "1", "role": "owner"}}, nil
		},
	}
	dependents := &fakeClient{
		name: "dependent",
		list: func(ctx context.Context, filters map[string]string) ([]upstream.Record, error) {
			return nil, apierr.Unavailable("dependent service unavailable", nil)
		},
	}

	if _, err := newAggregator(principals, dependents).GetAggregateStats(context.Background()); err == nil {
		t.Fatalf("expected error, no partial statistic is meaningful")
	}
}
