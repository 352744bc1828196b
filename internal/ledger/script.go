package ledger

import "github.com/redis/go-redis/v9"

// ingestScript performs the atomic idempotent append. A duplicate
// event_id returns the position assigned on first ingestion; a fresh
// event is appended to the global stream (the entry ID becomes its
// global_position), mirrored to the session stream under the same ID,
// stored as a JSON document, indexed for search, and recorded in the
// dedup set with its ingestion epoch ms as score, so backdated events
// stay deduplicable for the full retention window.
//
// KEYS[1] global stream
// KEYS[2] event document key
// KEYS[3] dedup sorted set
// KEYS[4] session stream
// KEYS[5] search hash key
//
// ARGV[1] event_id
// ARGV[2] event JSON
// ARGV[3] occurred_at epoch ms
// ARGV[4] session_id
// ARGV[5] agent_id
// ARGV[6] trace_id
// ARGV[7] event_type
// ARGV[8] tool_name (may be empty)
// ARGV[9] importance_hint (may be empty)
// ARGV[10] ingestion epoch ms
var ingestScript = redis.NewScript(`
local existing = redis.call('ZSCORE', KEYS[3], ARGV[1])
if existing then
  local doc = redis.call('GET', KEYS[2])
  if doc then
    local parsed = cjson.decode(doc)
    if parsed['global_position'] then
      return parsed['global_position']
    end
  end
  return redis.error_reply('duplicate event ' .. ARGV[1] .. ' has no stored position')
end

local position = redis.call('XADD', KEYS[1], '*',
  'event_id', ARGV[1],
  'event_json', ARGV[2],
  'occurred_at_epoch_ms', ARGV[3])

local doc = cjson.decode(ARGV[2])
doc['global_position'] = position
redis.call('SET', KEYS[2], cjson.encode(doc))

redis.call('XADD', KEYS[4], position,
  'event_id', ARGV[1],
  'occurred_at_epoch_ms', ARGV[3])

redis.call('HSET', KEYS[5],
  'event_id', ARGV[1],
  'session_id', ARGV[4],
  'agent_id', ARGV[5],
  'trace_id', ARGV[6],
  'event_type', ARGV[7],
  'occurred_at_epoch_ms', ARGV[3])
if ARGV[8] ~= '' then
  redis.call('HSET', KEYS[5], 'tool_name', ARGV[8])
end
if ARGV[9] ~= '' then
  redis.call('HSET', KEYS[5], 'importance_hint', ARGV[9])
end

redis.call('ZADD', KEYS[3], ARGV[10], ARGV[1])

return position
`)
