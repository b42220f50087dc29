package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/broadsend/groupcast/internal/domain"
	"github.com/broadsend/groupcast/internal/service/campaign"
)

type fakeCampaignService struct {
	mu       sync.Mutex
	due      []domain.Campaign
	outcomes map[string]string
	handled  []string
}

func (f *fakeCampaignService) DueRepeats(context.Context, int) ([]domain.Campaign, error) {
	return f.due, nil
}

func (f *fakeCampaignService) RepeatWaveIfReady(_ context.Context, c domain.Campaign) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, c.ID)
	return f.outcomes[c.ID], nil
}

type fakeLock struct {
	acquired bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) { return f.acquired, nil }
func (f *fakeLock) Release(context.Context) error         { f.releases++; return nil }

func TestWatchdogTickHandlesAllDue(t *testing.T) {
	svc := &fakeCampaignService{
		due: []domain.Campaign{{ID: "c1"}, {ID: "c2"}},
		outcomes: map[string]string{
			"c1": campaign.RepeatPlanned,
			"c2": campaign.RepeatWaveInProgress,
		},
	}
	w := NewRepeatWatchdog(svc, nil)

	w.Tick(context.Background())

	if len(svc.handled) != 2 {
		t.Fatalf("handled = %v, want both campaigns", svc.handled)
	}
}

func TestWatchdogSkipsWithoutLock(t *testing.T) {
	svc := &fakeCampaignService{due: []domain.Campaign{{ID: "c1"}}}
	lock := &fakeLock{acquired: false}
	w := NewRepeatWatchdog(svc, lock)

	w.Tick(context.Background())

	if len(svc.handled) != 0 {
		t.Error("tick ran without holding the lock")
	}
	if lock.releases != 0 {
		t.Error("released a lock that was never acquired")
	}
}

func TestWatchdogReleasesLock(t *testing.T) {
	svc := &fakeCampaignService{
		due:      []domain.Campaign{{ID: "c1"}},
		outcomes: map[string]string{"c1": campaign.RepeatPlanned},
	}
	lock := &fakeLock{acquired: true}
	w := NewRepeatWatchdog(svc, lock)

	w.Tick(context.Background())

	if len(svc.handled) != 1 {
		t.Fatalf("handled = %v", svc.handled)
	}
	if lock.releases != 1 {
		t.Errorf("releases = %d, want 1", lock.releases)
	}
}
