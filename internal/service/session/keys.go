package session

import "shop_chat_server/pkg/constants"

func sessionKey(sessionID string) string {
	return constants.SessionKeyPrefix + sessionID
}

func deviceIndexKey(deviceID string) string {
	return constants.DeviceSessionsKeyPrefix + deviceID
}

func userIndexKey(userID string) string {
	return constants.UserSessionsKeyPrefix + userID
}

// deviceIDFromIndexKey 从 device_sessions:<id> 中取出设备 ID
func deviceIDFromIndexKey(key string) string {
	return key[len(constants.DeviceSessionsKeyPrefix):]
}
