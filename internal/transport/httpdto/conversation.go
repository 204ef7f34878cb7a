package httpdto

import (
	"time"

	"alumnet-chat/internal/domain/conversation"
	"alumnet-chat/internal/services"
)

type CreateConversationRequest struct {
	Type           string  `json:"type" binding:"required"`
	Name           string  `json:"name"`
	ParticipantIDs []int64 `json:"participant_ids"`
}

type RenameConversationRequest struct {
	Name string `json:"name" binding:"required"`
}

type AddParticipantRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

type UpdateParticipantRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type MarkReadRequest struct {
	MessageID *string `json:"message_id"`
}

type ParticipantResponse struct {
	UserID            int64   `json:"user_id"`
	FullName          string  `json:"full_name,omitempty"`
	Role              string  `json:"role"`
	JoinedAt          string  `json:"joined_at"`
	LastReadMessageID *string `json:"last_read_message_id,omitempty"`
}

type ConversationResponse struct {
	ID              string                `json:"id"`
	Type            string                `json:"type"`
	Name            *string               `json:"name,omitempty"`
	LinkedPostingID *int64                `json:"linked_posting_id,omitempty"`
	IsArchived      bool                  `json:"is_archived"`
	LastMessageAt   *string               `json:"last_message_at,omitempty"`
	CreatedAt       string                `json:"created_at"`
	Participants    []ParticipantResponse `json:"participants"`
	LastMessage     *MessageResponse      `json:"last_message,omitempty"`
}

type ConversationListResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
	Total         int64                  `json:"total"`
	Page          int                    `json:"page"`
	Limit         int                    `json:"limit"`
}

func ToParticipantResponse(p conversation.Participant, name string) ParticipantResponse {
	resp := ParticipantResponse{
		UserID:   p.UserID,
		FullName: name,
		Role:     string(p.Role),
		JoinedAt: p.JoinedAt.Format(time.RFC3339),
	}
	if p.LastReadMessageID != nil {
		id := p.LastReadMessageID.String()
		resp.LastReadMessageID = &id
	}
	return resp
}

func ToConversationResponse(view services.ConversationView) ConversationResponse {
	resp := ConversationResponse{
		ID:              view.ID.String(),
		Type:            string(view.Type),
		Name:            view.Name,
		LinkedPostingID: view.LinkedPostingID,
		IsArchived:      view.IsArchived,
		CreatedAt:       view.CreatedAt.Format(time.RFC3339),
		Participants:    make([]ParticipantResponse, 0, len(view.Participants)),
	}
	if view.LastMessageAt != nil {
		at := view.LastMessageAt.Format(time.RFC3339)
		resp.LastMessageAt = &at
	}
	for _, p := range view.Participants {
		resp.Participants = append(resp.Participants, ToParticipantResponse(p, view.MemberNames[p.UserID]))
	}
	if view.LastMessage != nil {
		msg := ToMessageResponse(services.MessageView{Message: *view.LastMessage})
		resp.LastMessage = &msg
	}
	return resp
}
