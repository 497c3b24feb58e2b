package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/metrics"
	"marketplace/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationService defines the interface for buyer/seller messaging
type ConversationService interface {
	Start(ctx context.Context, requester, itemID uuid.UUID) (*domain.Conversation, error)
	GetOrCreate(ctx context.Context, itemID, buyerID, sellerID uuid.UUID) (*domain.Conversation, error)
	Post(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*domain.Message, error)
	ListVisible(ctx context.Context, conversationID uuid.UUID, viewer domain.Identity) ([]*domain.Message, error)
	Inbox(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error)
	SetMessageHidden(ctx context.Context, messageID uuid.UUID, hidden bool) (*domain.Message, error)
}

type conversationService struct {
	items         repository.ItemRepository
	conversations repository.ConversationRepository
	logger        *zap.Logger
}

// NewConversationService creates a new instance of ConversationService
func NewConversationService(
	items repository.ItemRepository,
	conversations repository.ConversationRepository,
	logger *zap.Logger,
) ConversationService {
	return &conversationService{
		items:         items,
		conversations: conversations,
		logger:        logger,
	}
}

// ShowMessage is the moderation filter: hidden messages are only shown to
// privileged viewers
func ShowMessage(m *domain.Message, viewerIsPrivileged bool) bool {
	return viewerIsPrivileged || !m.IsHidden
}

// Start opens (or reopens) the requester's conversation with the seller of an
// approved item
func (s *conversationService) Start(ctx context.Context, requester, itemID uuid.UUID) (*domain.Conversation, error) {
	item, err := s.items.FindApprovedByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return s.GetOrCreate(ctx, item.ID, requester, item.SellerID)
}

// GetOrCreate returns the single conversation of the triple, creating it on
// first contact
func (s *conversationService) GetOrCreate(ctx context.Context, itemID, buyerID, sellerID uuid.UUID) (*domain.Conversation, error) {
	if buyerID == sellerID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", ErrForbidden)
	}

	conv, err := s.conversations.GetOrCreate(ctx, itemID, buyerID, sellerID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSelfConversation):
			return nil, fmt.Errorf("%w: %w", ErrForbidden, err)
		case errors.Is(err, repository.ErrItemNotFound):
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return conv, nil
}

func (s *conversationService) participantConversation(ctx context.Context, conversationID, userID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant of this conversation", ErrForbidden)
	}
	return conv, nil
}

// Post appends a message and bumps the conversation's activity time
func (s *conversationService) Post(ctx context.Context, conversationID, senderID uuid.UUID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is empty", ErrForbidden)
	}

	if _, err := s.participantConversation(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := s.conversations.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}

	metrics.RecordMessagePosted()
	return msg, nil
}

// ListVisible returns the conversation's messages oldest first, filtered for
// the viewer
func (s *conversationService) ListVisible(ctx context.Context, conversationID uuid.UUID, viewer domain.Identity) ([]*domain.Message, error) {
	if _, err := s.participantConversation(ctx, conversationID, viewer.ID); err != nil {
		return nil, err
	}

	messages, err := s.conversations.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	visible := make([]*domain.Message, 0, len(messages))
	for _, m := range messages {
		if ShowMessage(m, viewer.Privileged) {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

func (s *conversationService) Inbox(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error) {
	return s.conversations.ListByParticipant(ctx, userID)
}

// SetMessageHidden is the moderation action on a single message
func (s *conversationService) SetMessageHidden(ctx context.Context, messageID uuid.UUID, hidden bool) (*domain.Message, error) {
	msg, err := s.conversations.SetMessageHidden(ctx, messageID, hidden)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}

	s.logger.Info("Message visibility changed",
		zap.String("message_id", messageID.String()),
		zap.Bool("hidden", hidden),
	)
	return msg, nil
}
