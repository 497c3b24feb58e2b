package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"marketplace/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

func newConversationFixture() (*fixture, ConversationService, *domain.Item) {
	f := newFixture()
	item := f.item(uuid.New(), f.category("Bikes").ID, domain.ItemStatusApproved, 0)
	return f, NewConversationService(f.items, f.conversations, zap.NewNop()), item
}

// Feature: marketplace, Property 7: Moderation filter shows hidden messages only to privileged viewers
func TestProperty_ShowMessage(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("show = privileged || !hidden", prop.ForAll(
		func(hidden, privileged bool) bool {
			m := &domain.Message{IsHidden: hidden}
			return ShowMessage(m, privileged) == (privileged || !hidden)
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: marketplace, Property 9: Blank messages are rejected without a write
func TestProperty_BlankMessagesAreForbidden(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("whitespace-only content is forbidden and nothing is stored", prop.ForAll(
		func(spaces []string) bool {
			ctx := context.Background()
			f, svc, item := newConversationFixture()
			buyer := uuid.New()
			conv, err := svc.Start(ctx, buyer, item.ID)
			if err != nil {
				return false
			}
			writes := f.conversations.writes

			_, err = svc.Post(ctx, conv.ID, buyer, strings.Join(spaces, ""))
			return errors.Is(err, ErrForbidden) && f.conversations.writes == writes
		},
		gen.SliceOf(gen.OneConstOf(" ", "\t", "\n", "\r")),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestPostByNonParticipantIsForbidden(t *testing.T) {
	ctx := context.Background()
	f, svc, item := newConversationFixture()
	conv, _ := svc.Start(ctx, uuid.New(), item.ID)
	writes := f.conversations.writes

	if _, err := svc.Post(ctx, conv.ID, uuid.New(), "hello"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if f.conversations.writes != writes {
		t.Fatal("forbidden post must not write")
	}
}

func TestPostTrimsAndBumpsActivity(t *testing.T) {
	ctx := context.Background()
	f, svc, item := newConversationFixture()
	buyer := uuid.New()
	conv, _ := svc.Start(ctx, buyer, item.ID)
	before := conv.UpdatedAt

	time.Sleep(time.Millisecond)
	msg, err := svc.Post(ctx, conv.ID, item.SellerID, "  still available  ")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if msg.Content != "still available" {
		t.Errorf("content not trimmed: %q", msg.Content)
	}

	stored, _ := f.conversations.FindByID(ctx, conv.ID)
	if !stored.UpdatedAt.After(before) {
		t.Error("posting must bump updated_at")
	}
}

func TestStartRejectsSelfConversation(t *testing.T) {
	ctx := context.Background()
	_, svc, item := newConversationFixture()

	if _, err := svc.Start(ctx, item.SellerID, item.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestStartRequiresApprovedItem(t *testing.T) {
	ctx := context.Background()
	f, svc, _ := newConversationFixture()
	pending := f.item(uuid.New(), f.category("Misc").ID, domain.ItemStatusPending, 0)

	if _, err := svc.Start(ctx, uuid.New(), pending.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetOrCreateConcurrentCallsShareConversation(t *testing.T) {
	ctx := context.Background()
	_, svc, item := newConversationFixture()
	buyer := uuid.New()

	const workers = 16
	ids := make([]uuid.UUID, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := svc.GetOrCreate(ctx, item.ID, buyer, item.SellerID)
			if err == nil {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] || id == uuid.Nil {
			t.Fatal("all callers must receive the same conversation")
		}
	}
}

func TestListVisibleFiltersHiddenMessages(t *testing.T) {
	ctx := context.Background()
	_, svc, item := newConversationFixture()
	buyer := uuid.New()
	conv, _ := svc.Start(ctx, buyer, item.ID)

	first, _ := svc.Post(ctx, conv.ID, buyer, "hello")
	hidden, _ := svc.Post(ctx, conv.ID, buyer, "rude")
	last, _ := svc.Post(ctx, conv.ID, item.SellerID, "hi")
	if _, err := svc.SetMessageHidden(ctx, hidden.ID, true); err != nil {
		t.Fatalf("SetMessageHidden failed: %v", err)
	}

	tests := []struct {
		name   string
		viewer domain.Identity
		want   []uuid.UUID
	}{
		{"participant", domain.Identity{ID: buyer}, []uuid.UUID{first.ID, last.ID}},
		{"privileged participant", domain.Identity{ID: item.SellerID, Privileged: true}, []uuid.UUID{first.ID, hidden.ID, last.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages, err := svc.ListVisible(ctx, conv.ID, tt.viewer)
			if err != nil {
				t.Fatalf("ListVisible failed: %v", err)
			}
			if len(messages) != len(tt.want) {
				t.Fatalf("expected %d messages, got %d", len(tt.want), len(messages))
			}
			for i, m := range messages {
				if m.ID != tt.want[i] {
					t.Errorf("message %d out of order", i)
				}
			}
		})
	}

	outsider := domain.Identity{ID: uuid.New(), Privileged: true}
	if _, err := svc.ListVisible(ctx, conv.ID, outsider); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-participant must be forbidden even when privileged, got %v", err)
	}
}

func TestSetMessageHiddenUnknownMessage(t *testing.T) {
	_, svc, _ := newConversationFixture()
	if _, err := svc.SetMessageHidden(context.Background(), uuid.New(), true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
