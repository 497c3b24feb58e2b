package service

import (
	"context"
	"testing"
	"time"

	"marketplace/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// buildCatalog creates nCategories categories with itemsPer items each, mixing
// in unavailable items, and returns the category ids
func buildCatalog(f *fixture, nCategories, itemsPer int) []uuid.UUID {
	seller := uuid.New()
	ids := make([]uuid.UUID, 0, nCategories)
	for c := 0; c < nCategories; c++ {
		category := f.category("c" + uuid.NewString()[:8])
		ids = append(ids, category.ID)
		for i := 0; i < itemsPer; i++ {
			status := domain.ItemStatusApproved
			if i%4 == 3 {
				status = domain.ItemStatusPending
			}
			item := f.item(seller, category.ID, status, time.Duration(c*itemsPer+i)*time.Minute)
			if i%5 == 4 {
				f.items.items[item.ID].IsSold = true
			}
		}
	}
	return ids
}

func newRecommender(f *fixture) RecommendationService {
	return NewRecommendationService(NewRepositorySource(f.profiles, f.views, f.items))
}

// Feature: marketplace, Property 5: V1 candidates are a subset of V2 candidates
func TestProperty_InterestCandidatesAreSubsetOfHistoryCandidates(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every V1 candidate is a V2 candidate", prop.ForAll(
		func(nCategories, itemsPer, nInterests, nViews int) bool {
			ctx := context.Background()
			f := newFixture()
			categories := buildCatalog(f, nCategories, itemsPer)
			user := uuid.New()
			f.profiles.Create(ctx, user)

			if nInterests > len(categories) {
				nInterests = len(categories)
			}
			if err := f.profiles.ReplaceInterests(ctx, user, categories[:nInterests]); err != nil {
				return false
			}

			viewed := 0
			for id := range f.items.items {
				if viewed == nViews {
					break
				}
				f.views.Record(ctx, &domain.ItemViewEvent{ID: uuid.New(), UserID: user, ItemID: id, CreatedAt: time.Now()})
				viewed++
			}

			rec := newRecommender(f)
			v1, err := rec.CandidatesV1(ctx, user)
			if err != nil {
				return false
			}
			v2, err := rec.CandidatesV2(ctx, user)
			if err != nil {
				return false
			}

			inV2 := make(map[uuid.UUID]bool, len(v2))
			for _, item := range v2 {
				inV2[item.ID] = true
			}
			for _, item := range v1 {
				if !inV2[item.ID] {
					t.Logf("FAIL: %s in V1 but not in V2", item.ID)
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 5),
		gen.IntRange(1, 8),
		gen.IntRange(0, 5),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: marketplace, Property 6: Recommendations are capped, unique and available
func TestProperty_RecommendationsAreCappedUniqueAndAvailable(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("both variants return at most six distinct available items", prop.ForAll(
		func(nCategories, itemsPer int) bool {
			ctx := context.Background()
			f := newFixture()
			categories := buildCatalog(f, nCategories, itemsPer)
			user := uuid.New()
			f.profiles.Create(ctx, user)
			// duplicated interests must not duplicate items
			f.profiles.profiles[user].InterestIDs = append(categories, categories...)

			rec := newRecommender(f)
			for _, variant := range []func(context.Context, uuid.UUID) ([]*domain.Item, error){rec.InterestBased, rec.InterestAndHistoryBased} {
				items, err := variant(ctx, user)
				if err != nil || len(items) > RecommendationLimit {
					return false
				}
				seen := map[uuid.UUID]bool{}
				for _, item := range items {
					if seen[item.ID] || item.Status != domain.ItemStatusApproved || item.IsSold {
						return false
					}
					seen[item.ID] = true
				}
			}
			return true
		},
		gen.IntRange(1, 6),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRecommendationsWithoutSignalsAreEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	buildCatalog(f, 3, 5)
	user := uuid.New()
	f.profiles.Create(ctx, user)

	rec := newRecommender(f)
	v1, err := rec.InterestBased(ctx, user)
	if err != nil || len(v1) != 0 {
		t.Fatalf("expected no V1 items without interests, got %d (%v)", len(v1), err)
	}
	v2, err := rec.InterestAndHistoryBased(ctx, user)
	if err != nil || len(v2) != 0 {
		t.Fatalf("expected no V2 items without interests or views, got %d (%v)", len(v2), err)
	}
}

func TestHistoryExtendsRecommendations(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seller := uuid.New()
	books := f.category("Books")
	games := f.category("Games")
	book := f.item(seller, books.ID, domain.ItemStatusApproved, time.Hour)
	game := f.item(seller, games.ID, domain.ItemStatusApproved, 2*time.Hour)

	user := uuid.New()
	f.profiles.Create(ctx, user)
	f.profiles.ReplaceInterests(ctx, user, []uuid.UUID{books.ID})
	NewViewTracker(f.views).RecordView(ctx, domain.Identity{ID: user}, game.ID)

	rec := newRecommender(f)
	v1, _ := rec.InterestBased(ctx, user)
	v2, _ := rec.InterestAndHistoryBased(ctx, user)

	if len(v1) != 1 || v1[0].ID != book.ID {
		t.Fatalf("V1 should only contain the book")
	}
	if len(v2) != 2 || v2[0].ID != book.ID || v2[1].ID != game.ID {
		t.Fatalf("V2 should contain book then game, newest first")
	}
}

func TestRecommendationsTruncateToNewest(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	seller := uuid.New()
	category := f.category("Toys")
	var newest []uuid.UUID
	for i := 0; i < 10; i++ {
		item := f.item(seller, category.ID, domain.ItemStatusApproved, time.Duration(i)*time.Minute)
		if i < RecommendationLimit {
			newest = append(newest, item.ID)
		}
	}

	user := uuid.New()
	f.profiles.Create(ctx, user)
	f.profiles.ReplaceInterests(ctx, user, []uuid.UUID{category.ID})

	items, _ := newRecommender(f).InterestBased(ctx, user)
	if len(items) != RecommendationLimit {
		t.Fatalf("expected %d items, got %d", RecommendationLimit, len(items))
	}
	for i, item := range items {
		if item.ID != newest[i] {
			t.Fatalf("position %d is not the expected newest item", i)
		}
	}
}
