package httpdto

import (
	"encoding/json"
	"time"

	"alumnet-chat/internal/services"
)

type SendMessageRequest struct {
	Content       string          `json:"content"`
	Type          string          `json:"type"`
	MediaURL      *string         `json:"media_url"`
	MediaMetadata json.RawMessage `json:"media_metadata"`
	ReplyToID     *string         `json:"reply_to_id"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

type ReactionResponse struct {
	UserID    int64  `json:"user_id"`
	Emoji     string `json:"emoji"`
	CreatedAt string `json:"created_at"`
}

type MessageResponse struct {
	ID             string             `json:"id"`
	ConversationID string             `json:"conversation_id"`
	SenderID       int64              `json:"sender_id"`
	Content        string             `json:"content"`
	Type           string             `json:"type"`
	MediaURL       *string            `json:"media_url,omitempty"`
	MediaMetadata  json.RawMessage    `json:"media_metadata,omitempty"`
	ReplyToID      *string            `json:"reply_to_id,omitempty"`
	EditedAt       *string            `json:"edited_at,omitempty"`
	Deleted        bool               `json:"deleted"`
	CreatedAt      string             `json:"created_at"`
	Reactions      []ReactionResponse `json:"reactions"`
}

func ToMessageResponse(view services.MessageView) MessageResponse {
	resp := MessageResponse{
		ID:             view.ID.String(),
		ConversationID: view.ConversationID.String(),
		SenderID:       view.SenderID,
		Content:        view.Content,
		Type:           string(view.Type),
		MediaURL:       view.MediaURL,
		MediaMetadata:  view.MediaMetadata,
		Deleted:        view.Deleted(),
		CreatedAt:      view.CreatedAt.Format(time.RFC3339),
		Reactions:      make([]ReactionResponse, 0, len(view.Reactions)),
	}
	if view.ReplyToID != nil {
		id := view.ReplyToID.String()
		resp.ReplyToID = &id
	}
	if view.EditedAt != nil {
		at := view.EditedAt.Format(time.RFC3339)
		resp.EditedAt = &at
	}
	for _, r := range view.Reactions {
		resp.Reactions = append(resp.Reactions, ReactionResponse{
			UserID:    r.UserID,
			Emoji:     r.Emoji,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
		})
	}
	return resp
}
