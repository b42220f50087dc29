package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/broadsend/groupcast/internal/domain"
	"github.com/broadsend/groupcast/internal/service/campaign"
)

func TestCampaignRepoClaimRepeatWins(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewCampaignRepo(db)

	now := time.Now()
	next := now.Add(90 * time.Minute)
	mock.ExpectExec("UPDATE campaigns").
		WithArgs("c1", now, next).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.ClaimRepeat(context.Background(), "c1", now, next)
	if err != nil {
		t.Fatalf("ClaimRepeat: %v", err)
	}
	if !claimed {
		t.Error("claim should win with one matched row")
	}
}

func TestCampaignRepoClaimRepeatLoses(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewCampaignRepo(db)

	now := time.Now()
	next := now.Add(time.Hour)
	// Another watchdog advanced the watermark first.
	mock.ExpectExec("UPDATE campaigns").
		WithArgs("c1", now, next).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.ClaimRepeat(context.Background(), "c1", now, next)
	if err != nil {
		t.Fatalf("ClaimRepeat: %v", err)
	}
	if claimed {
		t.Error("claim should lose with zero matched rows")
	}
}

func TestCampaignRepoCreateUniqueRace(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewCampaignRepo(db)

	mock.ExpectExec("INSERT INTO campaigns").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "campaigns_one_running_per_channel"})

	err := repo.Create(context.Background(), &domain.Campaign{
		ID: "c1", Owner: "a1", Channel: domain.ChannelWhatsApp, Status: domain.CampaignRunning,
	})
	if !errors.Is(err, campaign.ErrAlreadyRunning) {
		t.Errorf("err = %v, want %v", err, campaign.ErrAlreadyRunning)
	}
}

func TestCampaignRepoSetStoppedNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewCampaignRepo(db)

	mock.ExpectExec("UPDATE campaigns").
		WithArgs("missing", "a1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetStopped(context.Background(), "a1", "missing")
	if !errors.Is(err, campaign.ErrNotFound) {
		t.Errorf("err = %v, want %v", err, campaign.ErrNotFound)
	}
}

func TestCampaignRepoListDueRepeats(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewCampaignRepo(db)

	now := time.Now()
	due := now.Add(-time.Minute)
	rows := sqlmock.NewRows([]string{
		"id", "owner", "channel", "status", "time_from", "time_to", "timezone",
		"between_groups_sec_min", "between_groups_sec_max",
		"between_templates_min_min", "between_templates_min_max",
		"repeat_enabled", "repeat_min_minutes", "repeat_max_minutes",
		"next_repeat_at", "created_at", "updated_at",
	}).AddRow("c1", "a1", "wa", "running", "08:00", "22:00", "UTC",
		2, 5, 1, 3, true, 60, 120, due, now, now)

	mock.ExpectQuery("SELECT").
		WithArgs(now, 20).
		WillReturnRows(rows)

	out, err := repo.ListDueRepeats(context.Background(), now, 20)
	if err != nil {
		t.Fatalf("ListDueRepeats: %v", err)
	}
	if len(out) != 1 || out[0].ID != "c1" {
		t.Fatalf("out = %+v", out)
	}
	if out[0].NextRepeatAt == nil || !out[0].NextRepeatAt.Equal(due) {
		t.Errorf("next_repeat_at = %v, want %v", out[0].NextRepeatAt, due)
	}
}
