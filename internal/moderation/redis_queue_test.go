package moderation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	queue, err := NewRedisQueue("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis queue: %v", err)
	}
	t.Cleanup(func() { _ = queue.Close() })
	return queue, s
}

func testReport(id, reporterID string) Report {
	return Report{
		ID:         id,
		PostID:     "post_1",
		Category:   "frontend",
		Reason:     "spam",
		ReporterID: reporterID,
		Reporter:   "Sam",
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewRedisQueue(t *testing.T) {
	queue, _ := setupTestQueue(t)
	if err := queue.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisQueueBadURL(t *testing.T) {
	if _, err := NewRedisQueue("not-a-redis-url"); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestEnqueueAndPendingNewestFirst(t *testing.T) {
	queue, _ := setupTestQueue(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := queue.Enqueue(ctx, testReport(fmt.Sprintf("rpt_%d", i), fmt.Sprintf("user_%d", i))); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	reports, err := queue.Pending(ctx, 2)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(reports) != 2 || reports[0].ID != "rpt_3" || reports[1].ID != "rpt_2" {
		t.Fatalf("expected [rpt_3 rpt_2], got %+v", reports)
	}
	if !reports[0].CreatedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("createdAt did not round trip: %v", reports[0].CreatedAt)
	}

	n, err := queue.Len(ctx)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 pending reports, got %d (%v)", n, err)
	}
}

func TestEnqueueRejectsDuplicateWithinWindow(t *testing.T) {
	queue, s := setupTestQueue(t)
	ctx := context.Background()

	if err := queue.Enqueue(ctx, testReport("rpt_1", "user_1")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := queue.Enqueue(ctx, testReport("rpt_2", "user_1")); !errors.Is(err, ErrDuplicateReport) {
		t.Fatalf("expected ErrDuplicateReport, got %v", err)
	}

	s.FastForward(defaultDedupeTTL + time.Second)

	if err := queue.Enqueue(ctx, testReport("rpt_3", "user_1")); err != nil {
		t.Fatalf("Enqueue after window failed: %v", err)
	}
	n, _ := queue.Len(ctx)
	if n != 2 {
		t.Fatalf("expected 2 queued reports, got %d", n)
	}
}

func TestEnqueueDeduplicatesByReporterIDNotName(t *testing.T) {
	queue, _ := setupTestQueue(t)
	ctx := context.Background()

	if err := queue.Enqueue(ctx, testReport("rpt_1", "usr_1")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := queue.Enqueue(ctx, testReport("rpt_2", "usr_2")); err != nil {
		t.Fatalf("second user with the same display name was rejected: %v", err)
	}
	n, _ := queue.Len(ctx)
	if n != 2 {
		t.Fatalf("expected 2 queued reports, got %d", n)
	}
}

func TestEnqueueFailedPushCanBeRetried(t *testing.T) {
	queue, s := setupTestQueue(t)
	ctx := context.Background()

	if err := s.Set(queue.pendingKey(), "not a list"); err != nil {
		t.Fatalf("seed wrong type: %v", err)
	}
	if err := queue.Enqueue(ctx, testReport("rpt_1", "usr_1")); err == nil || errors.Is(err, ErrDuplicateReport) {
		t.Fatalf("expected push failure, got %v", err)
	}
	if s.Exists(queue.seenKey(testReport("rpt_1", "usr_1"))) {
		t.Fatal("failed push left the reporter marked as seen")
	}

	s.Del(queue.pendingKey())
	if err := queue.Enqueue(ctx, testReport("rpt_1", "usr_1")); err != nil {
		t.Fatalf("retry after failed push: %v", err)
	}
	n, _ := queue.Len(ctx)
	if n != 1 {
		t.Fatalf("expected 1 queued report, got %d", n)
	}
}

func TestEnqueueAnonymousNeverDeduplicated(t *testing.T) {
	queue, _ := setupTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := queue.Enqueue(ctx, testReport(fmt.Sprintf("rpt_%d", i), "")); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	n, _ := queue.Len(ctx)
	if n != 3 {
		t.Fatalf("expected 3 queued reports, got %d", n)
	}
}

func TestEnqueueCapsPendingList(t *testing.T) {
	queue, _ := setupTestQueue(t)
	queue.maxPending = 2
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		if err := queue.Enqueue(ctx, testReport(fmt.Sprintf("rpt_%d", i), "")); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	reports, err := queue.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(reports) != 2 || reports[0].ID != "rpt_4" || reports[1].ID != "rpt_3" {
		t.Fatalf("expected capped list [rpt_4 rpt_3], got %+v", reports)
	}
}

func TestRedisUnavailable(t *testing.T) {
	queue, s := setupTestQueue(t)
	s.Close()

	if err := queue.Enqueue(context.Background(), testReport("rpt_1", "")); err == nil {
		t.Fatal("expected error when redis is down")
	}
	if _, err := queue.Pending(context.Background(), 10); err == nil {
		t.Fatal("expected error when redis is down")
	}
}
