package janitor_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopquery/backend/internal/janitor"
	"github.com/shopquery/backend/internal/service/conversation"
)

func TestStartRejectsInvalidSchedule(t *testing.T) {
	j := janitor.New(conversation.NewStore(), time.Hour, "not a schedule")
	if err := j.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestStartAndStop(t *testing.T) {
	sessions := conversation.NewStore()
	sessions.Resolve(context.Background(), "", 10)

	j := janitor.New(sessions, time.Hour, "0 * * * *")
	if err := j.Start(); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	j.Stop()

	// A fresh session survives; the sweep only removes idle ones.
	if sessions.Len() != 1 {
		t.Fatalf("expected session to survive, got %d", sessions.Len())
	}
}
