package session_test

import (
	"testing"
	"time"

	"github.com/somakids/engage/core"
	"github.com/somakids/engage/core/session"
	inmemdb "github.com/somakids/engage/storage/database/inmem"
)

// discardRecorder records Discard calls from the session manager.
type discardRecorder struct {
	discarded []string
}

func (dr *discardRecorder) Discard(sessionID string) {
	dr.discarded = append(dr.discarded, sessionID)
}

func setup(t *testing.T) (*session.Service, session.Repository, *discardRecorder) {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := inmemdb.NewSessionRepository(db)
	agg := &discardRecorder{}
	return session.NewService(repo, agg), repo, agg
}

func TestService_Start(t *testing.T) {
	svc, _, agg := setup(t)

	sess, err := svc.Start("u1", session.NewSession{LessonID: "l1", DeviceInfo: "tablet"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if sess.ID == "" {
		t.Error("Start() returned empty session id")
	}
	if sess.Status != session.StatusOpen {
		t.Errorf("Start() status = %q; want %q", sess.Status, session.StatusOpen)
	}
	if sess.EndedAt != nil {
		t.Errorf("Start() endedAt = %v; want nil", sess.EndedAt)
	}
	if sess.StartedAt.IsZero() {
		t.Error("Start() startedAt not set")
	}
	if len(agg.discarded) != 0 {
		t.Errorf("Start() discarded %v; want none", agg.discarded)
	}
}

func TestService_Start_emptyLessonID(t *testing.T) {
	svc, _, _ := setup(t)

	for _, lessonID := range []string{"", "   "} {
		_, err := svc.Start("u1", session.NewSession{LessonID: lessonID})
		if err == nil {
			t.Fatalf("Start(%q) error = nil; want validation error", lessonID)
		}
		if _, ok := err.(*core.ValidationError); !ok {
			t.Errorf("Start(%q) error = %T; want *core.ValidationError", lessonID, err)
		}
	}
}

func TestService_Start_abandonsPriorOpenSession(t *testing.T) {
	svc, repo, agg := setup(t)

	first, err := svc.Start("u1", session.NewSession{LessonID: "l1"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	second, err := svc.Start("u1", session.NewSession{LessonID: "l1"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("Start() reused the prior session")
	}

	prior, err := repo.GetSession(first.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if prior.Status != session.StatusClosed {
		t.Errorf("prior status = %q; want %q", prior.Status, session.StatusClosed)
	}
	if prior.EndedAt == nil {
		t.Error("prior endedAt = nil; want abandonment timestamp")
	}
	if len(agg.discarded) != 1 || agg.discarded[0] != first.ID {
		t.Errorf("discarded = %v; want [%s]", agg.discarded, first.ID)
	}

	// the new session is the only open one
	open, err := repo.GetOpenSession("u1", "l1")
	if err != nil {
		t.Fatalf("GetOpenSession() error = %v", err)
	}
	if open.ID != second.ID {
		t.Errorf("open session = %s; want %s", open.ID, second.ID)
	}
}

func TestService_Start_concurrentSamePair(t *testing.T) {
	svc, repo, _ := setup(t)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := svc.Start("u1", session.NewSession{LessonID: "l1"})
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	}

	// exactly one open session survives the race
	if _, err := repo.GetOpenSession("u1", "l1"); err != nil {
		t.Fatalf("GetOpenSession() error = %v", err)
	}
}

func TestService_Start_differentLessonsIndependent(t *testing.T) {
	svc, repo, _ := setup(t)

	if _, err := svc.Start("u1", session.NewSession{LessonID: "l1"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := svc.Start("u1", session.NewSession{LessonID: "l2"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for _, lessonID := range []string{"l1", "l2"} {
		if _, err := repo.GetOpenSession("u1", lessonID); err != nil {
			t.Errorf("GetOpenSession(%q) error = %v; want open session", lessonID, err)
		}
	}
}

func TestService_End(t *testing.T) {
	svc, _, agg := setup(t)

	sess, err := svc.Start("u1", session.NewSession{LessonID: "l1"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ended, err := svc.End(sess.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != session.StatusClosed {
		t.Errorf("End() status = %q; want %q", ended.Status, session.StatusClosed)
	}
	if ended.EndedAt == nil {
		t.Fatal("End() endedAt = nil")
	}
	if len(agg.discarded) != 1 || agg.discarded[0] != sess.ID {
		t.Errorf("discarded = %v; want [%s]", agg.discarded, sess.ID)
	}
}

func TestService_End_idempotent(t *testing.T) {
	svc, _, _ := setup(t)

	sess, err := svc.Start("u1", session.NewSession{LessonID: "l1"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	first, err := svc.End(sess.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond) // a later retry must not move endedAt
	second, err := svc.End(sess.ID)
	if err != nil {
		t.Fatalf("End() retry error = %v; want none", err)
	}

	if !second.EndedAt.Equal(*first.EndedAt) {
		t.Errorf("End() retry endedAt = %v; want %v", second.EndedAt, first.EndedAt)
	}
	if second != first && (second.ID != first.ID || second.Status != first.Status) {
		t.Errorf("End() retry = %+v; want identical record %+v", second, first)
	}
}

func TestService_End_unknownSession(t *testing.T) {
	svc, _, _ := setup(t)

	if _, err := svc.End("nope"); err != session.NotFoundErr {
		t.Errorf("End() error = %v; want NotFoundErr", err)
	}
}

func TestService_Get(t *testing.T) {
	svc, _, _ := setup(t)

	sess, err := svc.Start("u1", session.NewSession{LessonID: "l1"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	got, err := svc.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("Get() id = %s; want %s", got.ID, sess.ID)
	}

	if _, err = svc.Get("nope"); err != session.NotFoundErr {
		t.Errorf("Get() error = %v; want NotFoundErr", err)
	}
}
