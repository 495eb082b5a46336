package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Tymofiyyy/pocket/internal/domain"
)

// These tests need a live Postgres; they are skipped unless DATABASE_URL
// is set (and in -short mode), so the SQL-resident transitions still get
// exercised somewhere.
func setupTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres-backed test in short mode")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.RunMigrations(ctx, "../../migrations"); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return s
}

// queueFixture creates a user, chain, and step, and removes them (with
// their queue rows, via cascade) when the test ends.
func queueFixture(t *testing.T, s *PostgresStore) (userID, chainID, stepID string) {
	t.Helper()
	ctx := context.Background()

	clickID := fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (click_id, telegram_id) VALUES ($1, 12345)
		RETURNING id
	`, clickID).Scan(&userID)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO message_chains (name, trigger_event) VALUES ($1, 'registration')
		RETURNING id
	`, "chain "+clickID).Scan(&chainID)
	if err != nil {
		t.Fatalf("failed to create chain: %v", err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO chain_steps (chain_id, step_order, delay_hours, message_type, message_text)
		VALUES ($1, 1, 0, 'text', 'hello')
		RETURNING id
	`, chainID).Scan(&stepID)
	if err != nil {
		t.Fatalf("failed to create step: %v", err)
	}

	t.Cleanup(func() {
		s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
		s.pool.Exec(ctx, `DELETE FROM message_chains WHERE id = $1`, chainID)
	})

	return userID, chainID, stepID
}

// insertQueueRow creates a queue row directly so status, age, and fire
// time can be controlled per case.
func insertQueueRow(t *testing.T, s *PostgresStore, userID, chainID, stepID string, status domain.QueueStatus, scheduledAt, createdAt time.Time) string {
	t.Helper()

	var id string
	err := s.pool.QueryRow(context.Background(), `
		INSERT INTO message_queue (user_id, chain_id, step_id, status, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, userID, chainID, stepID, status, scheduledAt, createdAt).Scan(&id)
	if err != nil {
		t.Fatalf("failed to insert queue row: %v", err)
	}
	return id
}

func queueRowState(t *testing.T, s *PostgresStore, id string) (domain.QueueStatus, int) {
	t.Helper()

	var status domain.QueueStatus
	var attempts int
	err := s.pool.QueryRow(context.Background(), `
		SELECT status, attempts FROM message_queue WHERE id = $1
	`, id).Scan(&status, &attempts)
	if err != nil {
		t.Fatalf("failed to read queue row %s: %v", id, err)
	}
	return status, attempts
}

func TestClaimDue_NeverClaimsBeforeScheduledAt(t *testing.T) {
	s := setupTestStore(t)
	userID, chainID, stepID := queueFixture(t, s)
	ctx := context.Background()

	future := insertQueueRow(t, s, userID, chainID, stepID,
		domain.QueuePending, time.Now().Add(time.Hour), time.Now())

	entries, err := s.ClaimDue(ctx, 50)
	if err != nil {
		t.Fatalf("ClaimDue failed: %v", err)
	}
	for _, e := range entries {
		if e.ID == future {
			t.Fatal("claimed an entry whose scheduled_at is in the future")
		}
	}

	status, attempts := queueRowState(t, s, future)
	if status != domain.QueuePending || attempts != 0 {
		t.Errorf("future entry should be untouched, got status=%s attempts=%d", status, attempts)
	}
}

func TestClaimDue_ClaimsDueEntryAndIncrementsAttempts(t *testing.T) {
	s := setupTestStore(t)
	userID, chainID, stepID := queueFixture(t, s)
	ctx := context.Background()

	due := insertQueueRow(t, s, userID, chainID, stepID,
		domain.QueuePending, time.Now().Add(-time.Minute), time.Now())

	entries, err := s.ClaimDue(ctx, 50)
	if err != nil {
		t.Fatalf("ClaimDue failed: %v", err)
	}

	var claimed *domain.ClaimedEntry
	for i := range entries {
		if entries[i].ID == due {
			claimed = &entries[i]
		}
	}
	if claimed == nil {
		t.Fatal("due entry was not claimed")
	}

	// The claim itself counts as the attempt
	if claimed.Attempts != 1 {
		t.Errorf("expected attempts=1 on first claim, got %d", claimed.Attempts)
	}
	if claimed.TelegramID == nil || *claimed.TelegramID != 12345 {
		t.Error("claim should join the user's destination")
	}
	if claimed.MessageType != domain.MessageText || claimed.MessageText == nil || *claimed.MessageText != "hello" {
		t.Error("claim should join the step content")
	}

	status, attempts := queueRowState(t, s, due)
	if status != domain.QueueProcessing || attempts != 1 {
		t.Errorf("expected processing/1 after claim, got %s/%d", status, attempts)
	}

	// A second cycle must not see the entry again while it is processing
	again, err := s.ClaimDue(ctx, 50)
	if err != nil {
		t.Fatalf("second ClaimDue failed: %v", err)
	}
	for _, e := range again {
		if e.ID == due {
			t.Error("processing entry was claimed twice")
		}
	}
}

func TestClaimDue_OrdersByScheduledAt(t *testing.T) {
	s := setupTestStore(t)
	userID, chainID, stepID := queueFixture(t, s)
	ctx := context.Background()

	later := insertQueueRow(t, s, userID, chainID, stepID,
		domain.QueuePending, time.Now().Add(-time.Minute), time.Now())
	earlier := insertQueueRow(t, s, userID, chainID, stepID,
		domain.QueuePending, time.Now().Add(-time.Hour), time.Now())

	entries, err := s.ClaimDue(ctx, 50)
	if err != nil {
		t.Fatalf("ClaimDue failed: %v", err)
	}

	earlierIdx, laterIdx := -1, -1
	for i, e := range entries {
		switch e.ID {
		case earlier:
			earlierIdx = i
		case later:
			laterIdx = i
		}
	}
	if earlierIdx == -1 || laterIdx == -1 {
		t.Fatal("both due entries should be claimed")
	}
	if earlierIdx > laterIdx {
		t.Error("entries should come back in scheduled_at order")
	}
}

func TestDeleteOldTerminal_OnlyAgedTerminalRows(t *testing.T) {
	s := setupTestStore(t)
	userID, chainID, stepID := queueFixture(t, s)
	ctx := context.Background()

	eightDaysAgo := time.Now().Add(-8 * 24 * time.Hour)

	oldCompleted := insertQueueRow(t, s, userID, chainID, stepID,
		domain.QueueCompleted, eightDaysAgo, eightDaysAgo)
	oldFailed := insertQueueRow(t, s, userID, chainID, stepID,
		domain.QueueFailed, eightDaysAgo, eightDaysAgo)
	oldSkipped := insertQueueRow(t, s, userID, chainID, stepID,
		domain.QueueSkipped, eightDaysAgo, eightDaysAgo)
	oldPending := insertQueueRow(t, s, userID, chainID, stepID,
		domain.QueuePending, eightDaysAgo, eightDaysAgo)
	oldProcessing := insertQueueRow(t, s, userID, chainID, stepID,
		domain.QueueProcessing, eightDaysAgo, eightDaysAgo)
	youngCompleted := insertQueueRow(t, s, userID, chainID, stepID,
		domain.QueueCompleted, time.Now(), time.Now())

	deleted, err := s.DeleteOldTerminal(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOldTerminal failed: %v", err)
	}
	if deleted < 3 {
		t.Errorf("expected at least the 3 aged terminal rows deleted, got %d", deleted)
	}

	remaining := map[string]bool{}
	rows, err := s.pool.Query(ctx, `SELECT id FROM message_queue WHERE user_id = $1`, userID)
	if err != nil {
		t.Fatalf("failed to list remaining rows: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		remaining[id] = true
	}

	for _, id := range []string{oldCompleted, oldFailed, oldSkipped} {
		if remaining[id] {
			t.Errorf("aged terminal row %s should have been swept", id)
		}
	}
	// Age alone never qualifies a live row
	for _, id := range []string{oldPending, oldProcessing, youngCompleted} {
		if !remaining[id] {
			t.Errorf("row %s should have survived the sweep", id)
		}
	}
}
