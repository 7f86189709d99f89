package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/recodex/internal/db"
	"github.com/kailas-cloud/recodex/internal/db/redis"
	"github.com/kailas-cloud/recodex/internal/domain/intent"
	"github.com/kailas-cloud/recodex/internal/logger"
)

type fakeKV struct {
	data   map[string][]byte
	ttl    map[string]time.Duration
	setErr error
	getErr error
	calls  int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeKV) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	f.calls++
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value
	f.ttl[key] = ttl
	return true, nil
}

func sequence(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func TestCreateAndLookup(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, "recodex:", 30*time.Minute, zap.NewNop())
	s.newID = sequence("sr-0000abcd")

	id := s.Create(context.Background(), "가성비 노트북", intent.DefaultQuestions())
	if id != "sr-0000abcd" {
		t.Fatalf("unexpected id %q", id)
	}
	if kv.ttl["recodex:shopping_research:sr-0000abcd"] != 30*time.Minute {
		t.Fatalf("ttl not applied: %v", kv.ttl)
	}

	sess, ok, err := s.Lookup(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("lookup failed: ok=%v err=%v", ok, err)
	}
	if sess.Query != "가성비 노트북" || len(sess.Questions) != intent.QuestionCount {
		t.Errorf("unexpected session: %+v", sess)
	}
	if text, ok := sess.QuestionText(1); !ok || text == "" {
		t.Errorf("question 1 text missing")
	}
}

func TestCreate_RetriesOnCollision(t *testing.T) {
	kv := newFakeKV()
	kv.data["p:shopping_research:sr-aaaaaaaa"] = []byte("{}")
	s := New(kv, "p:", time.Minute, zap.NewNop())
	s.newID = sequence("sr-aaaaaaaa", "sr-bbbbbbbb")

	id := s.Create(context.Background(), "q", nil)
	if id != "sr-bbbbbbbb" {
		t.Fatalf("expected retry id, got %q", id)
	}
	if kv.calls != 2 {
		t.Errorf("expected 2 SETNX calls, got %d", kv.calls)
	}
}

func TestCreate_GivesUpAfterRetries(t *testing.T) {
	kv := newFakeKV()
	kv.data["p:shopping_research:sr-aaaaaaaa"] = []byte("{}")
	s := New(kv, "p:", time.Minute, zap.NewNop())
	s.newID = sequence("sr-aaaaaaaa")

	id := s.Create(context.Background(), "q", nil)
	if id != "sr-aaaaaaaa" {
		t.Fatalf("expected id returned anyway, got %q", id)
	}
	if kv.calls != maxCreateAttempts {
		t.Errorf("expected %d attempts, got %d", maxCreateAttempts, kv.calls)
	}
}

func TestCreate_WriteFailureStillReturnsID(t *testing.T) {
	kv := newFakeKV()
	kv.setErr = errors.New("connection refused")
	s := New(kv, "p:", time.Minute, zap.NewNop())

	id := s.Create(context.Background(), "q", nil)
	if !strings.HasPrefix(id, "sr-") || len(id) != 11 {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestCreate_WriteFailureLogsWithRequestLogger(t *testing.T) {
	kv := newFakeKV()
	kv.setErr = errors.New("connection refused")
	s := New(kv, "p:", time.Minute, zap.NewNop())

	core, logs := observer.New(zap.WarnLevel)
	ctx := logger.ContextWithLogger(context.Background(), zap.New(core).With(zap.String("request_id", "req-1")))
	s.Create(ctx, "q", nil)

	entries := logs.FilterMessage("session write failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", logs.Len())
	}
	if got := entries[0].ContextMap()["request_id"]; got != "req-1" {
		t.Errorf("request_id = %v, want req-1", got)
	}
}

func TestLookup_Missing(t *testing.T) {
	s := New(newFakeKV(), "p:", time.Minute, zap.NewNop())

	_, ok, err := s.Lookup(context.Background(), "sr-deadbeef")
	if err != nil || ok {
		t.Fatalf("expected absent without error, got ok=%v err=%v", ok, err)
	}
}

func TestLookup_Errors(t *testing.T) {
	kv := newFakeKV()
	kv.data["p:shopping_research:sr-badjson0"] = []byte("not json")
	s := New(kv, "p:", time.Minute, zap.NewNop())

	if _, _, err := s.Lookup(context.Background(), "sr-badjson0"); err == nil {
		t.Error("expected decode error")
	}

	kv.getErr = errors.New("timeout")
	if _, _, err := s.Lookup(context.Background(), "sr-anything"); err == nil {
		t.Error("expected store error")
	}
}

func TestCreate_WithRedisStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	store := redis.NewStoreForTest(client)

	client.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return len(cmd) >= 6 && cmd[0] == "SET" &&
				cmd[1] == "recodex:shopping_research:sr-12345678" &&
				cmd[3] == "NX" && cmd[4] == "EX" && cmd[5] == "1800"
		}, "SET NX EX")).
		Return(mock.Result(mock.RedisString("OK")))

	s := New(store, "recodex:", 1800*time.Second, zap.NewNop())
	s.newID = sequence("sr-12345678")

	if id := s.Create(context.Background(), "q", nil); id != "sr-12345678" {
		t.Fatalf("unexpected id %q", id)
	}
}
