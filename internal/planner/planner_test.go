package planner

import (
	"errors"
	"testing"
	"time"

	"github.com/broadsend/groupcast/internal/domain"
)

func testCampaign() domain.Campaign {
	return domain.Campaign{
		ID:                     "camp-1",
		Owner:                  "acct-1",
		Channel:                domain.ChannelWhatsApp,
		Status:                 domain.CampaignRunning,
		TimeFrom:               "08:00",
		TimeTo:                 "22:00",
		Timezone:               "UTC",
		BetweenGroupsSecMin:    2,
		BetweenGroupsSecMax:    3,
		BetweenTemplatesMinMin: 1,
		BetweenTemplatesMinMax: 1,
	}
}

func group(id, name string) domain.Group {
	return domain.Group{
		ID:       id,
		Owner:    "acct-1",
		Channel:  domain.ChannelWhatsApp,
		ChatID:   id + "@g.us",
		Name:     name,
		Selected: true,
	}
}

func noon() time.Time {
	return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func TestPlanBroadcastsWithoutOverrides(t *testing.T) {
	in := Input{
		Campaign:  testCampaign(),
		Now:       noon(),
		Groups:    []domain.Group{group("g1", "Alpha"), group("g2", "Beta")},
		Templates: []domain.Template{{ID: "t1", Enabled: true}, {ID: "t2", Enabled: true}},
	}

	res, err := Plan(in)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(res.Jobs) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(res.Jobs))
	}
	seen := make(map[domain.PairKey]bool)
	for _, j := range res.Jobs {
		seen[domain.PairKey{GroupID: j.GroupID, TemplateID: j.TemplateID}] = true
		if j.Status != domain.JobPending {
			t.Errorf("job %s status = %s, want pending", j.ID, j.Status)
		}
		if j.CampaignID != "camp-1" || j.Owner != "acct-1" {
			t.Errorf("job %s missing campaign attribution", j.ID)
		}
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 distinct (group, template) pairs, got %d", len(seen))
	}
}

func TestPlanSequentialCursorSpacing(t *testing.T) {
	in := Input{
		Campaign:  testCampaign(),
		Now:       noon(),
		Groups:    []domain.Group{group("g1", "Alpha"), group("g2", "Beta"), group("g3", "Gamma")},
		Templates: []domain.Template{{ID: "t1", Enabled: true}},
	}

	res, err := Plan(in)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(res.Jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(res.Jobs))
	}
	if !res.Jobs[0].ScheduledAt.Equal(noon()) {
		t.Errorf("first slot = %v, want %v", res.Jobs[0].ScheduledAt, noon())
	}
	for i := 1; i < len(res.Jobs); i++ {
		gap := res.Jobs[i].ScheduledAt.Sub(res.Jobs[i-1].ScheduledAt)
		if gap < 2*time.Second || gap > 3*time.Second {
			t.Errorf("gap between job %d and %d = %v, want 2s..3s", i-1, i, gap)
		}
	}
}

func TestPlanPerGroupCadenceDoesNotMoveCursor(t *testing.T) {
	fixed := group("g1", "Fixed")
	fixed.SendTime = "18:00"
	plain := group("g2", "Plain")

	in := Input{
		Campaign:  testCampaign(),
		Now:       noon(),
		Groups:    []domain.Group{fixed, plain},
		Templates: []domain.Template{{ID: "t1", Enabled: true}},
	}

	res, err := Plan(in)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	byGroup := make(map[string]domain.Job)
	for _, j := range res.Jobs {
		byGroup[j.GroupID] = j
	}
	want := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	if got := byGroup["g1"].ScheduledAt; !got.Equal(want) {
		t.Errorf("fixed-time group slot = %v, want %v", got, want)
	}
	// The plain group takes the shared cursor, unaffected by g1's slot.
	if got := byGroup["g2"].ScheduledAt; !got.Equal(noon()) {
		t.Errorf("plain group slot = %v, want %v", got, noon())
	}
}

func TestPlanSkipsFuturePendingPairs(t *testing.T) {
	in := Input{
		Campaign:  testCampaign(),
		Now:       noon(),
		Groups:    []domain.Group{group("g1", "Alpha"), group("g2", "Beta")},
		Templates: []domain.Template{{ID: "t1", Enabled: true}},
		PendingKeys: map[domain.PairKey]bool{
			{GroupID: "g1", TemplateID: "t1"}: true,
		},
	}

	res, err := Plan(in)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(res.Jobs) != 1 || res.Jobs[0].GroupID != "g2" {
		t.Fatalf("expected single job for g2, got %+v", res.Jobs)
	}
	if res.SkippedPending != 1 {
		t.Errorf("SkippedPending = %d, want 1", res.SkippedPending)
	}
}

func TestPlanAllPairsPending(t *testing.T) {
	in := Input{
		Campaign:  testCampaign(),
		Now:       noon(),
		Groups:    []domain.Group{group("g1", "Alpha")},
		Templates: []domain.Template{{ID: "t1", Enabled: true}},
		PendingKeys: map[domain.PairKey]bool{
			{GroupID: "g1", TemplateID: "t1"}: true,
		},
	}

	if _, err := Plan(in); !errors.Is(err, ErrNoJobs) {
		t.Errorf("err = %v, want %v", err, ErrNoJobs)
	}
}

func TestPlanTargetOverrides(t *testing.T) {
	in := Input{
		Campaign:  testCampaign(),
		Now:       noon(),
		Groups:    []domain.Group{group("g1", "Alpha"), group("g2", "Beta")},
		Templates: []domain.Template{{ID: "t1", Enabled: true}, {ID: "t2", Enabled: true}},
		Targets: []domain.TemplateTarget{
			{TemplateID: "t1", GroupID: "g2", Channel: domain.ChannelWhatsApp},
		},
	}

	res, err := Plan(in)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	// t1 goes only to g2; t2 has no rows while overrides exist, so it
	// sends to nobody.
	if len(res.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(res.Jobs))
	}
	if res.Jobs[0].GroupID != "g2" || res.Jobs[0].TemplateID != "t1" {
		t.Errorf("got job %+v, want t1 to g2", res.Jobs[0])
	}
}

func TestPlanNoTargetsMatch(t *testing.T) {
	in := Input{
		Campaign:  testCampaign(),
		Now:       noon(),
		Groups:    []domain.Group{group("g1", "Alpha")},
		Templates: []domain.Template{{ID: "t1", Enabled: true}},
		Targets: []domain.TemplateTarget{
			{TemplateID: "t1", GroupID: "g-deselected", Channel: domain.ChannelWhatsApp},
		},
	}

	if _, err := Plan(in); !errors.Is(err, ErrNoTargets) {
		t.Errorf("err = %v, want %v", err, ErrNoTargets)
	}
}

func TestPlanFiltersUnusableGroups(t *testing.T) {
	deselected := group("g1", "Nope")
	deselected.Selected = false
	announce := group("g2", "Channel")
	announce.Announce = true
	wrongChannel := group("g3", "TG")
	wrongChannel.Channel = domain.ChannelTelegram

	in := Input{
		Campaign:  testCampaign(),
		Now:       noon(),
		Groups:    []domain.Group{deselected, announce, wrongChannel, group("g4", "OK")},
		Templates: []domain.Template{{ID: "t1", Enabled: true}},
	}

	res, err := Plan(in)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(res.Jobs) != 1 || res.Jobs[0].GroupID != "g4" {
		t.Fatalf("expected single job for g4, got %+v", res.Jobs)
	}
}

func TestPlanEmptyInputs(t *testing.T) {
	if _, err := Plan(Input{Campaign: testCampaign(), Now: noon()}); !errors.Is(err, ErrNoGroups) {
		t.Errorf("no groups: err = %v, want %v", err, ErrNoGroups)
	}
	in := Input{Campaign: testCampaign(), Now: noon(), Groups: []domain.Group{group("g1", "A")}}
	if _, err := Plan(in); !errors.Is(err, ErrNoTemplates) {
		t.Errorf("no templates: err = %v, want %v", err, ErrNoTemplates)
	}
}

func TestPlanClampsToWindow(t *testing.T) {
	c := testCampaign()
	in := Input{
		Campaign:  c,
		Now:       time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC),
		Groups:    []domain.Group{group("g1", "Alpha")},
		Templates: []domain.Template{{ID: "t1", Enabled: true}},
	}

	res, err := Plan(in)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)
	if !res.Jobs[0].ScheduledAt.Equal(want) {
		t.Errorf("slot = %v, want next window open %v", res.Jobs[0].ScheduledAt, want)
	}
}
