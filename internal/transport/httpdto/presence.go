package httpdto

import "chatcore/internal/domain/presence"

type UpdatePrivacyRequest struct {
	ShowOnlineStatus string `json:"show_online_status" binding:"required"`
	ShowLastSeen     string `json:"show_last_seen" binding:"required"`
}

type PresenceDTO = presence.View
