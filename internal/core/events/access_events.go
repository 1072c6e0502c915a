package events

// Events published by the role, privilege, and user services whenever a
// membership set changes. The authorization cache subscribes to these.
const (
	EventUserRolesSynced      = "user.roles_synced"
	EventUserSuspended        = "user.suspended"
	EventUserDeleted          = "user.deleted"
	EventRolePrivilegesSynced = "role.privileges_synced"
	EventRoleDeleted          = "role.deleted"
	EventPrivilegesPurged     = "privileges.purged"
)

func NewUserRolesSynced(userID int64) BaseEvent {
	return NewBaseEvent(EventUserRolesSynced, map[string]interface{}{"user_id": userID})
}

func NewUserSuspended(userID int64, reason string, revokedTokens int64) BaseEvent {
	return NewBaseEvent(EventUserSuspended, map[string]interface{}{
		"user_id":        userID,
		"reason":         reason,
		"revoked_tokens": revokedTokens,
	})
}

func NewUserDeleted(userID int64) BaseEvent {
	return NewBaseEvent(EventUserDeleted, map[string]interface{}{"user_id": userID})
}

// NewRolePrivilegesSynced carries the IDs of every user holding the role
// so subscribers can invalidate exactly the affected cache entries.
func NewRolePrivilegesSynced(roleID int64, userIDs []int64) BaseEvent {
	return NewBaseEvent(EventRolePrivilegesSynced, map[string]interface{}{
		"role_id":  roleID,
		"user_ids": userIDs,
	})
}

func NewRoleDeleted(roleID int64, userIDs []int64) BaseEvent {
	return NewBaseEvent(EventRoleDeleted, map[string]interface{}{
		"role_id":  roleID,
		"user_ids": userIDs,
	})
}

func NewPrivilegesPurged(deleted int64) BaseEvent {
	return NewBaseEvent(EventPrivilegesPurged, map[string]interface{}{"deleted": deleted})
}

// UserIDsFromEvent extracts the affected user IDs from a membership event
// payload, tolerating both single-user and multi-user shapes.
func UserIDsFromEvent(e Event) []int64 {
	data, ok := e.Payload().(map[string]interface{})
	if !ok {
		return nil
	}
	if id, ok := data["user_id"].(int64); ok {
		return []int64{id}
	}
	if ids, ok := data["user_ids"].([]int64); ok {
		return ids
	}
	return nil
}
