package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go-llmlab/internal/brochure"
	"go-llmlab/internal/convo"
)

var ErrNotFound = errors.New("not found")

var log = logrus.WithField("component", "archive")

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// StartConversation creates the run record and writes every seed line.
func (s *Store) StartConversation(ctx context.Context, userID uint, cast *convo.Cast, rounds int, policy convo.FreshnessPolicy) (*Conversation, error) {
	speakers, err := json.Marshal(cast.Speakers)
	if err != nil {
		return nil, err
	}
	conv := &Conversation{
		UserID:    userID,
		CastName:  cast.Name,
		Rounds:    rounds,
		Freshness: string(policy),
		Status:    StatusRunning,
		Speakers:  speakers,
	}
	for _, m := range cast.Speakers {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		conv.Turns = append(conv.Turns, Turn{Index: 0, SpeakerID: m.ID, SpeakerName: name, Text: m.Seed})
	}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *Store) AppendTurn(ctx context.Context, conversationID uuid.UUID, t convo.Turn) error {
	row := Turn{
		ConversationID: conversationID,
		Index:          t.Index,
		SpeakerID:      t.SpeakerID,
		SpeakerName:    t.SpeakerName,
		Text:           t.Text,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// FinishConversation marks the run completed, or failed with runErr.
func (s *Store) FinishConversation(ctx context.Context, id uuid.UUID, runErr error) error {
	updates := map[string]interface{}{"status": StatusCompleted, "error": ""}
	if runErr != nil {
		updates["status"] = StatusFailed
		updates["error"] = runErr.Error()
	}
	res := s.db.WithContext(ctx).Model(&Conversation{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetConversation loads a run with its turns in transcript order.
func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	var conv Conversation
	err := s.db.WithContext(ctx).
		Preload("Turns", func(db *gorm.DB) *gorm.DB { return db.Order("turn_index ASC, id ASC") }).
		First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns a user's runs, newest first, without turns.
func (s *Store) ListConversations(ctx context.Context, userID uint, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	var convs []Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&convs).Error
	return convs, err
}

func (s *Store) SaveBrochure(ctx context.Context, userID uint, b *brochure.Brochure) (*BrochureRecord, error) {
	links, err := json.Marshal(b.Links)
	if err != nil {
		return nil, err
	}
	rec := &BrochureRecord{
		UserID:   userID,
		Company:  b.Company,
		URL:      b.URL,
		Markdown: b.Markdown,
		Links:    links,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("save brochure: %w", err)
	}
	return rec, nil
}

func (s *Store) GetBrochure(ctx context.Context, id uint) (*BrochureRecord, error) {
	var rec BrochureRecord
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recorder mirrors a running coordinator into the store. Register Observe
// with Coordinator.OnReply and call Finish once Run returns.
type Recorder struct {
	ctx   context.Context
	store *Store
	conv  *Conversation
	err   error
}

func (s *Store) NewRecorder(ctx context.Context, conv *Conversation) *Recorder {
	return &Recorder{ctx: ctx, store: s, conv: conv}
}

func (r *Recorder) ConversationID() uuid.UUID { return r.conv.ID }

// Observe stores one turn. A storage failure is kept for Finish and does
// not interrupt the conversation.
func (r *Recorder) Observe(t convo.Turn) {
	if err := r.store.AppendTurn(r.ctx, r.conv.ID, t); err != nil && r.err == nil {
		log.WithError(err).WithField("conversation", r.conv.ID).Error("failed to archive turn")
		r.err = err
	}
}

// Finish records the run outcome and reports the first storage failure.
func (r *Recorder) Finish(runErr error) error {
	if err := r.store.FinishConversation(context.WithoutCancel(r.ctx), r.conv.ID, runErr); err != nil {
		return err
	}
	return r.err
}
