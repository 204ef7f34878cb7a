package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	chaterrors "alumnet-chat/pkg/errors"
)

func TestMessageValidate(t *testing.T) {
	url := "https://cdn.example.com/photo.jpg"
	empty := ""

	tests := []struct {
		label string
		msg   Message
		ok    bool
	}{
		{"text with content", Message{Type: TypeText, Content: "hi"}, true},
		{"text without content", Message{Type: TypeText}, false},
		{"text with media", Message{Type: TypeText, Content: "hi", MediaURL: &url}, false},
		{"image with media", Message{Type: TypeImage, MediaURL: &url}, true},
		{"image without media", Message{Type: TypeImage}, false},
		{"file with empty media", Message{Type: TypeFile, MediaURL: &empty}, false},
		{"system with media", Message{Type: TypeSystem, MediaURL: &url}, true},
		{"unknown type", Message{Type: "VOICE", Content: "hi"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, chaterrors.ErrInvalidInput)
			}
		})
	}
}

func TestDeleted(t *testing.T) {
	m := Message{}
	assert.False(t, m.Deleted())
	now := time.Now()
	m.DeletedAt = &now
	assert.True(t, m.Deleted())
}
