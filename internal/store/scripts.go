package store

import "github.com/redis/go-redis/v9"

// Script is a named server-side Lua program. Each one executes as a single
// indivisible unit, which is the only isolation the store offers.
type Script struct {
	Name   string
	script *redis.Script
}

func newScript(name, src string) *Script {
	return &Script{Name: name, script: redis.NewScript(src)}
}

// isHash is prepended to scripts that read user records so a key of another
// type under the user prefix reads as a miss instead of a WRONGTYPE error.
const isHash = `
local function is_hash(key)
  local t = redis.call('TYPE', key)
  if type(t) == 'table' then
    t = t.ok
  end
  return t == 'hash'
end
`

// RegisterUser: KEYS user, counter, users:all. ARGV username, password hash,
// first name, last name, email, is_staff, is_superuser, id-index prefix.
// Returns 0 when the username is taken, otherwise the allocated id.
var RegisterUser = newScript("register_user", `
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
local id = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1],
  'id', id,
  'username', ARGV[1],
  'password', ARGV[2],
  'first_name', ARGV[3],
  'last_name', ARGV[4],
  'email', ARGV[5],
  'is_staff', ARGV[6],
  'is_superuser', ARGV[7])
redis.call('SADD', KEYS[3], ARGV[1])
redis.call('SET', ARGV[8] .. id, ARGV[1])
return id
`)

// Authenticate: KEYS user. ARGV password digest. Returns the record when the
// stored digest matches, or when the stored hash is bcrypt and must be
// verified by the caller. Returns nil otherwise.
var Authenticate = newScript("authenticate", isHash+`
if not is_hash(KEYS[1]) then
  return false
end
local stored = redis.call('HGET', KEYS[1], 'password')
if not stored then
  return false
end
if stored == ARGV[1] or string.sub(stored, 1, 2) == '$2' then
  return redis.call('HGETALL', KEYS[1])
end
return false
`)

var GetUser = newScript("get_user", isHash+`
if not is_hash(KEYS[1]) then
  return false
end
local data = redis.call('HGETALL', KEYS[1])
if #data == 0 then
  return false
end
return data
`)

// GetUserByID: KEYS id-index key. ARGV user key prefix.
var GetUserByID = newScript("get_user_by_id", isHash+`
local username = redis.call('GET', KEYS[1])
if not username or not is_hash(ARGV[1] .. username) then
  return false
end
local data = redis.call('HGETALL', ARGV[1] .. username)
if #data == 0 then
  return false
end
return data
`)

// UpdateProfile: KEYS user. ARGV field/value pairs. Only first_name,
// last_name and email are written; anything else is dropped.
var UpdateProfile = newScript("update_profile", isHash+`
if not is_hash(KEYS[1]) then
  return false
end
local args = {}
for i = 1, #ARGV, 2 do
  local field = ARGV[i]
  if field == 'first_name' or field == 'last_name' or field == 'email' then
    table.insert(args, field)
    table.insert(args, ARGV[i + 1])
  end
end
if #args > 0 then
  redis.call('HSET', KEYS[1], unpack(args))
end
return redis.call('HGETALL', KEYS[1])
`)

// UpgradePasswordHash: KEYS user. ARGV expected hash, new hash. Compare-and-set.
var UpgradePasswordHash = newScript("upgrade_password_hash", `
if redis.call('HGET', KEYS[1], 'password') == ARGV[1] then
  redis.call('HSET', KEYS[1], 'password', ARGV[2])
  return 1
end
return 0
`)

// CreateSession: KEYS session, reverse pointer. ARGV username, session id, ttl ms.
var CreateSession = newScript("create_session", `
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// GetSession: KEYS session. ARGV user key prefix.
var GetSession = newScript("get_session", isHash+`
local username = redis.call('GET', KEYS[1])
if not username or not is_hash(ARGV[1] .. username) then
  return false
end
local data = redis.call('HGETALL', ARGV[1] .. username)
if #data == 0 then
  return false
end
return data
`)

// DeleteSession: KEYS session. ARGV reverse pointer prefix, session id.
// The reverse pointer is only removed while it still names this session.
var DeleteSession = newScript("delete_session", `
local username = redis.call('GET', KEYS[1])
if username then
  local reverse = ARGV[1] .. username
  if redis.call('GET', reverse) == ARGV[2] then
    redis.call('DEL', reverse)
  end
end
return redis.call('DEL', KEYS[1])
`)

// CreateToken: KEYS token, user token set. ARGV username, token, ttl ms.
// The set's expiry is only ever extended so it outlives every member.
var CreateToken = newScript("create_token", `
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('SADD', KEYS[2], ARGV[2])
if redis.call('PTTL', KEYS[2]) < tonumber(ARGV[3]) then
  redis.call('PEXPIRE', KEYS[2], ARGV[3])
end
return 1
`)

// RevokeToken: KEYS token. ARGV user key prefix, token set suffix, token.
var RevokeToken = newScript("revoke_token", `
local username = redis.call('GET', KEYS[1])
if username then
  redis.call('SREM', ARGV[1] .. username .. ARGV[2], ARGV[3])
end
return redis.call('DEL', KEYS[1])
`)

// RegisterLoginFailure: KEYS guard state. ARGV now ms, free attempts, base
// delay ms, multiplier, max delay ms, reset window ms. Returns the cooldown
// in ms imposed by this failure.
var RegisterLoginFailure = newScript("register_login_failure", `
local failures = tonumber(redis.call('HGET', KEYS[1], 'failures') or '0')
local last = tonumber(redis.call('HGET', KEYS[1], 'last_failure_ms') or '0')
if failures == nil or last == nil then
  return redis.error_reply('malformed login guard state')
end
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[6])
if last > 0 and now - last > window then
  failures = 0
end
failures = failures + 1
local free = tonumber(ARGV[2])
local delay = 0
if failures > free then
  delay = tonumber(ARGV[3]) * (tonumber(ARGV[4]) ^ (failures - free - 1))
  local max = tonumber(ARGV[5])
  if delay > max then
    delay = max
  end
  delay = math.floor(delay)
end
redis.call('HSET', KEYS[1],
  'failures', tostring(failures),
  'last_failure_ms', ARGV[1],
  'cooldown_until_ms', string.format('%d', now + delay))
redis.call('PEXPIRE', KEYS[1], string.format('%d', window + delay))
return delay
`)

// ScriptingProbe verifies scripting is enabled on the server.
var ScriptingProbe = newScript("scripting_probe", `return 'OK'`)

func AllScripts() []*Script {
	return []*Script{
		RegisterUser, Authenticate, GetUser, GetUserByID, UpdateProfile,
		UpgradePasswordHash, CreateSession, GetSession, DeleteSession, CreateToken, RevokeToken, RegisterLoginFailure, ScriptingProbe,
	}
}
