// Package redis stores participation counters in Redis so several admin
// processes can ingest into the same experiment.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/emiliopalmerini/lostfound-admin/internal/domain"
)

const (
	fieldParticipants = "participants"
	fieldConversions  = "conversions"
	mismatchPrefix    = "mismatch:"
)

// recordScript applies one participation record atomically.
//
// KEYS[1] participant hash, field = participant id, value = "<converted>|<variant>"
// KEYS[2] counter hash, field = "<kind>:<variant>"
// ARGV[1] participant id, ARGV[2] variant, ARGV[3] "1" when converted
var recordScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if not cur then
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[3] .. '|' .. ARGV[2])
  redis.call('HINCRBY', KEYS[2], 'participants:' .. ARGV[2], 1)
  if ARGV[3] == '1' then
    redis.call('HINCRBY', KEYS[2], 'conversions:' .. ARGV[2], 1)
  end
  return 'recorded'
end
local converted = string.sub(cur, 1, 1)
local variant = string.sub(cur, 3)
if variant ~= ARGV[2] then
  return 'mismatch:' .. variant
end
if converted == '1' or ARGV[3] ~= '1' then
  return 'duplicate_ignored'
end
redis.call('HSET', KEYS[1], ARGV[1], '1|' .. variant)
redis.call('HINCRBY', KEYS[2], 'conversions:' .. variant, 1)
return 'converted'
`)

// ParticipantsKey is the hash of participants seen for an experiment.
func ParticipantsKey(namespace, experimentID string) string {
	return fmt.Sprintf("%s:experiment:%s:participants", namespace, experimentID)
}

// CountersKey is the hash of per-variant counters for an experiment.
func CountersKey(namespace, experimentID string) string {
	return fmt.Sprintf("%s:experiment:%s:counters", namespace, experimentID)
}

// ParticipationRepository implements ports.ParticipationRepository on Redis.
// All keys are namespaced so several deployments can share one server.
type ParticipationRepository struct {
	rdb       *redis.Client
	namespace string
}

// NewParticipationRepository returns a repository using rdb. The namespace
// must not be empty.
func NewParticipationRepository(rdb *redis.Client, namespace string) (*ParticipationRepository, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	return &ParticipationRepository{rdb: rdb, namespace: namespace}, nil
}

// Ping verifies Redis connectivity.
func (r *ParticipationRepository) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return domain.TransientStore("redis ping failed", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *ParticipationRepository) Close() error {
	return r.rdb.Close()
}

func (r *ParticipationRepository) Record(ctx context.Context, rec domain.ParticipationRecord) (domain.IngestOutcome, error) {
	converted := "0"
	if rec.Converted {
		converted = "1"
	}
	keys := []string{
		ParticipantsKey(r.namespace, rec.ExperimentID),
		CountersKey(r.namespace, rec.ExperimentID),
	}

	res, err := recordScript.Run(ctx, r.rdb, keys, rec.ParticipantID, rec.VariantName, converted).Text()
	if err != nil {
		return "", domain.TransientStore("failed to record participation", err)
	}

	if existing, ok := strings.CutPrefix(res, mismatchPrefix); ok {
		return "", domain.Validationf("participant %s is already assigned to variant %s, not %s",
			rec.ParticipantID, existing, rec.VariantName)
	}
	switch outcome := domain.IngestOutcome(res); outcome {
	case domain.IngestRecorded, domain.IngestConverted, domain.IngestDuplicateIgnored:
		return outcome, nil
	default:
		return "", fmt.Errorf("unexpected record script result %q", res)
	}
}

func (r *ParticipationRepository) Snapshot(ctx context.Context, experimentID string) (domain.Snapshot, error) {
	fields, err := r.rdb.HGetAll(ctx, CountersKey(r.namespace, experimentID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, domain.TransientStore("failed to read counters", err)
	}

	snap := make(domain.Snapshot)
	for field, raw := range fields {
		kind, variant, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt counter %s=%q: %w", field, raw, err)
		}
		c := snap[variant]
		switch kind {
		case fieldParticipants:
			c.Participants = n
		case fieldConversions:
			c.Conversions = n
		default:
			continue
		}
		snap[variant] = c
	}
	return snap, nil
}

func (r *ParticipationRepository) DeleteExperiment(ctx context.Context, experimentID string) error {
	err := r.rdb.Del(ctx,
		ParticipantsKey(r.namespace, experimentID),
		CountersKey(r.namespace, experimentID),
	).Err()
	if err != nil {
		return domain.TransientStore("failed to delete counters", err)
	}
	return nil
}
