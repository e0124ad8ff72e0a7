package indengine

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"quantdb/internal/indicator"
	"quantdb/internal/model"
)

// engineCheckpoint is the persisted state of one frequency's engine: the
// serialized indicator state plus the per-symbol high-water marks, so a
// restarted service neither replays bars nor skips them.
type engineCheckpoint struct {
	Engine   *indicator.EngineSnapshot `json:"engine"`
	LastSeen map[string]time.Time      `json:"last_seen"`

	// FundSeen carries the fundamental-ratio high-water marks. It is written
	// into every frequency's checkpoint and merged on restore.
	FundSeen map[string]time.Time `json:"fund_seen,omitempty"`
}

func (svc *Service) checkpointKey(freq model.Frequency) string {
	return svc.cfg.SnapshotKey + ":" + string(freq)
}

// restoreEngines builds one engine per configured frequency, warm from a
// Redis checkpoint when one exists, cold otherwise.
func (svc *Service) restoreEngines(ctx context.Context) error {
	for _, freq := range svc.cfg.Frequencies {
		var cp *engineCheckpoint
		if svc.publisher != nil {
			data, err := svc.publisher.ReadSnapshot(ctx, svc.checkpointKey(freq))
			if err != nil {
				log.Printf("[indengine] checkpoint read for %s: %v", freq, err)
			} else if data != nil {
				var parsed engineCheckpoint
				if err := json.Unmarshal(data, &parsed); err != nil {
					log.Printf("[indengine] checkpoint for %s is corrupt, cold starting: %v", freq, err)
				} else {
					cp = &parsed
				}
			}
		}

		if cp == nil || cp.Engine == nil {
			eng, err := indicator.NewEngine(svc.registry, freq, svc.cfg.Indicators)
			if err != nil {
				return err
			}
			svc.engines[freq] = eng
			svc.lastSeen[freq] = make(map[string]time.Time)
			log.Printf("[indengine] no checkpoint for %s — cold starting engine", freq)
			continue
		}

		eng, err := indicator.RestoreEngine(svc.registry, freq, svc.cfg.Indicators, cp.Engine)
		if err != nil {
			return err
		}
		svc.engines[freq] = eng
		if cp.LastSeen == nil {
			cp.LastSeen = make(map[string]time.Time)
		}
		svc.lastSeen[freq] = cp.LastSeen
		for sym, ts := range cp.FundSeen {
			if ts.After(svc.fundSeen[sym]) {
				svc.fundSeen[sym] = ts
			}
		}
		log.Printf("[indengine] restored %s engine warm (%d symbols)", freq, len(cp.LastSeen))
	}
	return nil
}

// saveCheckpoints snapshots every engine to Redis.
func (svc *Service) saveCheckpoints(ctx context.Context) {
	if svc.publisher == nil {
		return
	}
	for _, freq := range svc.cfg.Frequencies {
		snap, err := indicator.SnapshotEngine(svc.engines[freq])
		if err != nil {
			log.Printf("[indengine] snapshot %s engine: %v", freq, err)
			continue
		}
		data, err := json.Marshal(engineCheckpoint{
			Engine:   snap,
			LastSeen: svc.lastSeen[freq],
			FundSeen: svc.fundSeen,
		})
		if err != nil {
			log.Printf("[indengine] marshal %s checkpoint: %v", freq, err)
			continue
		}
		if err := svc.publisher.WriteSnapshot(ctx, svc.checkpointKey(freq), data); err != nil {
			log.Printf("[indengine] checkpoint write for %s: %v", freq, err)
		}
	}
}

// checkpointLoop periodically saves engine state so restarts resume warm.
func (svc *Service) checkpointLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(svc.cfg.SnapshotIntervalS) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.saveCheckpoints(ctx)
		}
	}
}
