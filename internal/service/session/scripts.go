package session

import "github.com/redis/go-redis/v9"

// 会话的读-改-写全部在服务端脚本中完成，多个进程并发写同一会话时不会丢消息。
// cjson 会把空数组编码为 {}，model 层的列表类型在反序列化时兼容这种情况；
// 消息里的商品以字符串形式传入，脚本只搬运不解析。

// luaAppendMessage 追加一条消息并裁剪到上限
// KEYS[1] = session key
// ARGV[1] = messageJSON, ARGV[2] = maxMessages, ARGV[3] = now, ARGV[4] = ttlSeconds
// 会话不存在返回 nil，否则返回追加后的消息条数
var luaAppendMessage = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
    return false
end

local session = cjson.decode(raw)
local messages = session['messages']
if type(messages) ~= 'table' then
    messages = {}
end
table.insert(messages, cjson.decode(ARGV[1]))

local maxMessages = tonumber(ARGV[2])
local count = #messages
if maxMessages > 0 and count > maxMessages then
    local kept = {}
    for i = count - maxMessages + 1, count do
        table.insert(kept, messages[i])
    end
    messages = kept
end

session['messages'] = messages
session['last_activity_at'] = ARGV[3]
redis.call('SET', KEYS[1], cjson.encode(session), 'EX', tonumber(ARGV[4]))
return #messages
`)

// luaUpgradeSession 将会话归属切换到用户
// KEYS[1] = session key
// ARGV[1] = userID, ARGV[2] = now, ARGV[3] = ttlSeconds, ARGV[4] = "1" 时不接管其他用户的会话
// 会话不存在返回 nil，被其他用户持有且 ARGV[4] 为 "1" 时返回 0，否则返回升级后的会话 JSON
// 已属于同一用户时原样返回，不做任何写入
var luaUpgradeSession = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
    return false
end

local session = cjson.decode(raw)
local owner = session['user_id']
if session['is_authenticated'] == true and owner == ARGV[1] then
    return raw
end
if ARGV[4] == '1' and type(owner) == 'string' and owner ~= '' and owner ~= ARGV[1] then
    return 0
end

session['user_id'] = ARGV[1]
session['is_authenticated'] = true
session['upgraded_at'] = ARGV[2]
session['last_activity_at'] = ARGV[2]

local encoded = cjson.encode(session)
redis.call('SET', KEYS[1], encoded, 'EX', tonumber(ARGV[3]))
return encoded
`)

// luaSetGuestInfo 覆盖访客信息
// KEYS[1] = session key
// ARGV[1] = guestInfoJSON, ARGV[2] = now, ARGV[3] = ttlSeconds
// 会话不存在返回 nil，已登录会话返回 0 且不写入，成功返回 1
var luaSetGuestInfo = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
    return false
end

local session = cjson.decode(raw)
if session['is_authenticated'] == true then
    return 0
end

session['guest_info'] = cjson.decode(ARGV[1])
session['last_activity_at'] = ARGV[2]
redis.call('SET', KEYS[1], cjson.encode(session), 'EX', tonumber(ARGV[3]))
return 1
`)
