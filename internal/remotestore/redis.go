package remotestore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alexkarev/homekeeper/internal/common"
	"github.com/alexkarev/homekeeper/internal/logging"
	"github.com/alexkarev/homekeeper/internal/record"
)

// RedisStore is a Client backed by redis. Records live as JSON payloads in
// one hash per record type, keyed by zone so users never collide:
//
//	hk:{zone}:records:{type}  ->  field {record id}, value {json record}
type RedisStore struct {
	client *redis.Client
	zone   string
	log    logging.Logger
}

func NewRedisStore(client *redis.Client, zone string, log logging.Logger) *RedisStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RedisStore{client: client, zone: zone, log: log}
}

func (s *RedisStore) zoneKey() string {
	return fmt.Sprintf("hk:%s:zone", s.zone)
}

func (s *RedisStore) recordsKey(recordType string) string {
	return fmt.Sprintf("hk:%s:records:%s", s.zone, recordType)
}

func (s *RedisStore) EnsureZone(ctx context.Context) error {
	// SETNX makes creation idempotent: an existing marker is success.
	if err := s.client.SetNX(ctx, s.zoneKey(), time.Now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("%w: ensuring zone %s: %v", common.ErrUnavailable, s.zone, err)
	}
	return nil
}

func (s *RedisStore) DeleteAll(ctx context.Context, recordType string) error {
	// Best-effort cleanup: failures are logged, never surfaced.
	if err := s.client.Del(ctx, s.recordsKey(recordType)).Err(); err != nil {
		s.log.Warn(ctx, "delete all failed", "record_type", recordType, "error", err)
	}
	return nil
}

func (s *RedisStore) SaveOne(ctx context.Context, rec *record.Record) error {
	cp := rec.Clone()
	cp.ModificationDate = time.Now().UTC()

	if err := s.client.HSet(ctx, s.recordsKey(rec.Type), rec.ID, cp).Err(); err != nil {
		return fmt.Errorf("saving record %s/%s: %w", rec.Type, rec.ID, err)
	}
	return nil
}

func (s *RedisStore) SaveMany(ctx context.Context, recs []*record.Record) []SaveResult {
	results := make([]SaveResult, 0, len(recs))
	for _, rec := range recs {
		results = append(results, SaveResult{ID: rec.ID, Err: s.SaveOne(ctx, rec)})
	}
	return results
}

func (s *RedisStore) Fetch(ctx context.Context, recordType string, opts FetchOptions) ([]FetchResult, error) {
	raw, err := s.client.HGetAll(ctx, s.recordsKey(recordType)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s records: %v", common.ErrUnavailable, recordType, err)
	}

	results := make([]FetchResult, 0, len(raw))
	for id, payload := range raw {
		rec := &record.Record{}
		if err := rec.UnmarshalBinary([]byte(payload)); err != nil {
			// One corrupt record must not abort the whole fetch.
			results = append(results, FetchResult{ID: id, Err: err})
			continue
		}
		if opts.Filter != nil && !opts.Filter(rec) {
			continue
		}
		results = append(results, FetchResult{ID: id, Record: rec})
	}

	return sortAndLimit(results, opts), nil
}

// Reconnect re-establishes the connection after an account change.
func (s *RedisStore) Reconnect(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: reconnecting: %v", common.ErrUnavailable, err)
	}
	return nil
}

// sortAndLimit orders fetch results per opts. Records that failed to decode
// sort last so callers see them after the usable ones.
func sortAndLimit(results []FetchResult, opts FetchOptions) []FetchResult {
	sort.Slice(results, func(i, j int) bool {
		ri, rj := results[i], results[j]
		switch {
		case ri.Record == nil:
			return false
		case rj.Record == nil:
			return true
		case opts.SortByDateDesc:
			return ri.Record.ModificationDate.After(rj.Record.ModificationDate)
		default:
			return ri.ID < rj.ID
		}
	})
	if opts.Limit > 0 && len(results) > opts.Limit {
		return results[:opts.Limit]
	}
	return results
}
