package worker

import (
	"context"
	"log"
	"time"

	"github.com/broadsend/groupcast/internal/channel"
	"github.com/broadsend/groupcast/internal/domain"
)

// DefaultGroupSyncInterval is how often gateway group lists are pulled.
const DefaultGroupSyncInterval = 15 * time.Minute

// GroupStore is the repository surface the sync needs.
type GroupStore interface {
	Upsert(ctx context.Context, g *domain.Group) error
	MarkStale(ctx context.Context, owner string, ch domain.Channel, cutoff time.Time) (int, error)
}

// AccountLister names the accounts to sync per channel. The server's
// account roster lives outside the scheduler, so the worker is handed a
// provider rather than a table.
type AccountLister interface {
	ListAccounts(ctx context.Context, ch domain.Channel) ([]string, error)
}

// GroupSync mirrors each connected account's gateway group list into the
// groups table. Operator-managed fields on existing rows survive the sync;
// groups the gateway stopped reporting are pruned.
type GroupSync struct {
	adapters channel.Registry
	groups   GroupStore
	accounts AccountLister
	interval time.Duration
}

// NewGroupSync creates a group sync worker with the default interval.
func NewGroupSync(adapters channel.Registry, groups GroupStore, accounts AccountLister) *GroupSync {
	return &GroupSync{
		adapters: adapters,
		groups:   groups,
		accounts: accounts,
		interval: DefaultGroupSyncInterval,
	}
}

// SetInterval overrides the sync interval.
func (gs *GroupSync) SetInterval(iv time.Duration) {
	if iv > 0 {
		gs.interval = iv
	}
}

// Start syncs once immediately, then on every tick until ctx is cancelled.
func (gs *GroupSync) Start(ctx context.Context) {
	log.Printf("[GroupSync] Starting (interval=%s)", gs.interval)

	gs.syncAll(ctx)

	ticker := time.NewTicker(gs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[GroupSync] Stopped")
			return
		case <-ticker.C:
			gs.syncAll(ctx)
		}
	}
}

// SyncAll runs one full pass. Exported for tests.
func (gs *GroupSync) SyncAll(ctx context.Context) { gs.syncAll(ctx) }

func (gs *GroupSync) syncAll(ctx context.Context) {
	for ch, adapter := range gs.adapters {
		owners, err := gs.accounts.ListAccounts(ctx, ch)
		if err != nil {
			log.Printf("[GroupSync] list %s accounts: %v", ch, err)
			continue
		}
		for _, owner := range owners {
			if err := gs.syncAccount(ctx, ch, adapter, owner); err != nil {
				log.Printf("[GroupSync] sync %s/%s: %v", ch, owner, err)
			}
		}
	}
}

func (gs *GroupSync) syncAccount(ctx context.Context, ch domain.Channel, adapter channel.Adapter, owner string) error {
	status, err := adapter.ConnectionStatus(ctx, owner)
	if err != nil {
		return err
	}
	if status != channel.StatusConnected {
		return nil
	}

	infos, err := adapter.ListGroups(ctx, owner)
	if err != nil {
		return err
	}

	started := time.Now()
	for _, info := range infos {
		g := &domain.Group{
			Owner:    owner,
			Channel:  ch,
			ChatID:   info.ChatID,
			Name:     info.Name,
			Announce: info.Announce,
			SyncedAt: &started,
		}
		if err := gs.groups.Upsert(ctx, g); err != nil {
			return err
		}
	}

	pruned, err := gs.groups.MarkStale(ctx, owner, ch, started)
	if err != nil {
		return err
	}
	if pruned > 0 {
		log.Printf("[GroupSync] %s/%s: %d groups synced, %d pruned", ch, owner, len(infos), pruned)
	}
	return nil
}
