package store

import "strconv"

// Key schema shared by every process that talks to the store. Changing any of
// these breaks compatibility with existing data.
const (
	userPrefix        = "user:"
	userIDPrefix      = "user:id:"
	userSessionPrefix = "user:session:"
	userTokensSuffix  = ":tokens"
	sessionPrefix     = "session:"
	tokenPrefix       = "token:"

	UserIDCounterKey = "user:id:counter"
	AllUsersKey      = "users:all"
)

// Prefixes handed to scripts that build keys from values they read. Those
// keys are not declared in KEYS, so the store must be a single Redis node;
// cluster mode is not supported and NewClient never selects it.
const (
	UserKeyPrefix        = userPrefix
	UserIDKeyPrefix      = userIDPrefix
	UserSessionKeyPrefix = userSessionPrefix
	UserTokensKeySuffix  = userTokensSuffix
)

func UserKey(username string) string { return userPrefix + username }

func UserIDKey(id int64) string { return userIDPrefix + strconv.FormatInt(id, 10) }

func SessionKey(sessionID string) string { return sessionPrefix + sessionID }

func UserSessionKey(username string) string { return userSessionPrefix + username }

func TokenKey(token string) string { return tokenPrefix + token }

func UserTokensKey(username string) string { return userPrefix + username + userTokensSuffix }
