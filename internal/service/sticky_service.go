package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/clock"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const stickyRepostTimeout = 15 * time.Second

// StickyService keeps a notice at the bottom of selected channels by
// reposting it shortly after other messages arrive.
type StickyService struct {
	mu      sync.Mutex
	texts   map[string]string
	ids     map[string]string
	pending map[string]*clock.Timer
	// channels serializes delete-then-post per channel.
	channels *keyedMutex

	textRepo repository.TextRepository
	idRepo   repository.TextRepository
	platform platform.Platform
	authz    *auth.Authorizer
	clock    clock.Clock
	delay    time.Duration
	logger   *zap.Logger
}

// StickyDependencies bundles collaborators for sticky notices.
type StickyDependencies struct {
	TextRepo   repository.TextRepository
	IDRepo     repository.TextRepository
	Platform   platform.Platform
	Authorizer *auth.Authorizer
	Clock      clock.Clock
	Delay      time.Duration
	Logger     *zap.Logger
}

// NewStickyService loads the configured notices and their last message ids.
func NewStickyService(ctx context.Context, deps StickyDependencies) (*StickyService, error) {
	texts, err := deps.TextRepo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sticky notices: %w", err)
	}
	ids, err := deps.IDRepo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sticky message ids: %w", err)
	}
	s := &StickyService{
		texts:    make(map[string]string, len(texts)),
		ids:      make(map[string]string, len(ids)),
		pending:  make(map[string]*clock.Timer),
		channels: newKeyedMutex(),
		textRepo: deps.TextRepo,
		idRepo:   deps.IDRepo,
		platform: deps.Platform,
		authz:    deps.Authorizer,
		clock:    deps.Clock,
		delay:    deps.Delay,
		logger:   deps.Logger,
	}
	for _, e := range texts {
		s.texts[e.Key] = e.Value
	}
	for _, e := range ids {
		s.ids[e.Key] = e.Value
	}
	return s, nil
}

// Current returns the notice configured for channelID.
func (s *StickyService) Current(channelID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texts[channelID]
}

// Set replaces the notice of channelID. Empty text removes it.
func (s *StickyService) Set(ctx context.Context, actor domain.Actor, channelID, text string) error {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return err
	}
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if timer, ok := s.pending[channelID]; ok {
		timer.Stop()
		delete(s.pending, channelID)
	}
	s.mu.Unlock()

	unlock := s.channels.Lock(channelID)
	defer unlock()
	s.deletePrevious(ctx, channelID)

	if text == "" {
		if _, err := s.textRepo.Delete(ctx, channelID); err != nil {
			return apperrors.NewUnavailable("Could not save the sticky message.", err)
		}
		if _, err := s.idRepo.Delete(ctx, channelID); err != nil {
			s.logger.Warn("sticky id cleanup failed", zap.String("channel_id", channelID), zap.Error(err))
		}
		s.mu.Lock()
		delete(s.texts, channelID)
		delete(s.ids, channelID)
		s.mu.Unlock()
		s.logger.Info("sticky notice removed", zap.String("channel_id", channelID), zap.String("actor_id", actor.ID))
		return nil
	}

	if err := s.textRepo.Put(ctx, channelID, text); err != nil {
		return apperrors.NewUnavailable("Could not save the sticky message.", err)
	}
	s.mu.Lock()
	s.texts[channelID] = text
	s.mu.Unlock()

	if err := s.post(ctx, channelID, text); err != nil {
		return apperrors.NewUnavailable("Sticky message saved but could not be posted.", err)
	}
	s.logger.Info("sticky notice set", zap.String("channel_id", channelID), zap.String("actor_id", actor.ID))
	return nil
}

// OnMessage schedules a repost for a sticky channel, replacing any repost
// already pending for it.
func (s *StickyService) OnMessage(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.texts[channelID]; !ok {
		return
	}
	if timer, ok := s.pending[channelID]; ok {
		timer.Stop()
	}
	var timer *clock.Timer
	timer = s.clock.AfterFunc(s.delay, func() {
		s.mu.Lock()
		if s.pending[channelID] == timer {
			delete(s.pending, channelID)
		}
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), stickyRepostTimeout)
		defer cancel()
		if err := s.Repost(ctx, channelID); err != nil {
			s.logger.Warn("sticky repost failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	})
	s.pending[channelID] = timer
}

// Repost deletes the previous notice of channelID and posts it again.
func (s *StickyService) Repost(ctx context.Context, channelID string) error {
	unlock := s.channels.Lock(channelID)
	defer unlock()
	text := s.Current(channelID)
	if text == "" {
		return nil
	}
	s.deletePrevious(ctx, channelID)
	return s.post(ctx, channelID, text)
}

// RepostAll refreshes every notice, typically at startup.
func (s *StickyService) RepostAll(ctx context.Context) {
	s.mu.Lock()
	channels := make([]string, 0, len(s.texts))
	for id := range s.texts {
		channels = append(channels, id)
	}
	s.mu.Unlock()

	for _, id := range channels {
		if err := s.Repost(ctx, id); err != nil {
			s.logger.Warn("sticky repost failed", zap.String("channel_id", id), zap.Error(err))
		}
	}
}

// Pending reports how many reposts are scheduled.
func (s *StickyService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every scheduled repost.
func (s *StickyService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.pending {
		timer.Stop()
		delete(s.pending, id)
	}
}

func (s *StickyService) deletePrevious(ctx context.Context, channelID string) {
	s.mu.Lock()
	previous := s.ids[channelID]
	s.mu.Unlock()
	if previous == "" {
		return
	}
	if err := s.platform.DeleteMessage(ctx, channelID, previous); err != nil {
		s.logger.Debug("previous sticky not deleted", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (s *StickyService) post(ctx context.Context, channelID, text string) error {
	msgID, err := s.platform.Send(ctx, channelID, platform.Message{Content: text})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ids[channelID] = msgID
	s.mu.Unlock()
	if err := s.idRepo.Put(ctx, channelID, msgID); err != nil {
		s.logger.Warn("sticky message id not saved", zap.String("channel_id", channelID), zap.Error(err))
	}
	return nil
}
