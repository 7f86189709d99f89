// Package session stores research question sets between the questions and
// research steps.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recodex/internal/db"
	"github.com/kailas-cloud/recodex/internal/domain/intent"
	"github.com/kailas-cloud/recodex/internal/domain/session"
	"github.com/kailas-cloud/recodex/internal/logger"
)

const maxCreateAttempts = 3

// kv is the consumer interface for session persistence (ISP).
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Store persists sessions under {prefix}shopping_research:{id}.
type Store struct {
	kv     kv
	prefix string
	ttl    time.Duration
	newID  func() string
	now    func() time.Time
	logger *zap.Logger
}

// New creates a session store.
func New(s kv, keyPrefix string, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		kv:     s,
		prefix: keyPrefix + "shopping_research:",
		ttl:    ttl,
		newID:  session.NewSearchID,
		now:    time.Now,
		logger: logger,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Create writes a new session and returns its id. A write failure is logged
// and the id is still returned: the research step backfills question texts
// with placeholders when the session is gone.
func (s *Store) Create(ctx context.Context, query string, questions []intent.Question) string {
	sess := session.Session{
		Query:     query,
		Questions: questions,
		CreatedAt: s.now().UTC(),
	}
	log := logger.With(ctx, s.logger)

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		sess.ID = s.newID()
		data, err := json.Marshal(sess)
		if err != nil {
			log.Warn("session encode failed", zap.String("search_id", sess.ID), zap.Error(err))
			return sess.ID
		}

		ok, err := s.kv.SetNX(ctx, s.key(sess.ID), data, s.ttl)
		if err != nil {
			log.Warn("session write failed", zap.String("search_id", sess.ID), zap.Error(err))
			return sess.ID
		}
		if ok {
			return sess.ID
		}
		log.Debug("search id collision", zap.String("search_id", sess.ID), zap.Int("attempt", attempt))
	}

	log.Warn("session not stored after retries", zap.String("search_id", sess.ID))
	return sess.ID
}

// Lookup returns the stored session. A missing key reports ok=false with no error.
func (s *Store) Lookup(ctx context.Context, id string) (session.Session, bool, error) {
	data, err := s.kv.Get(ctx, s.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return session.Session{}, false, nil
		}
		return session.Session{}, false, fmt.Errorf("session get %s: %w", id, err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return session.Session{}, false, fmt.Errorf("session decode %s: %w", id, err)
	}
	return sess, true, nil
}
