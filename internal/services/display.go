package services

import "github.com/shrimpcod/RealTimeChat/internal/models"

// DisplayIdentity is the name and avatar a viewer sees for a chat.
type DisplayIdentity struct {
	Name      *string
	AvatarURL *string
}

// ResolveDisplayName returns how chat appears to viewerID. A private chat is
// shown as the other participant; a group keeps its own name.
func ResolveDisplayName(chat models.ChatSummary, viewerID string) DisplayIdentity {
	if chat.Type != models.ChatTypePrivate {
		return DisplayIdentity{Name: chat.Name, AvatarURL: chat.AvatarURL}
	}
	for _, p := range chat.Participants {
		if p.ID != viewerID {
			name := p.Username
			return DisplayIdentity{Name: &name, AvatarURL: p.AvatarURL}
		}
	}
	return DisplayIdentity{Name: chat.Name, AvatarURL: chat.AvatarURL}
}

// ShapeFor returns a copy of summary as viewerID should receive it: display
// identity resolved and, for private chats, the viewer left out of the roster.
func ShapeFor(summary models.ChatSummary, viewerID string) models.ChatSummary {
	out := summary
	id := ResolveDisplayName(summary, viewerID)
	out.Name = id.Name
	out.AvatarURL = id.AvatarURL

	if summary.Type == models.ChatTypePrivate {
		out.Participants = make([]models.ParticipantInfo, 0, len(summary.Participants))
		for _, p := range summary.Participants {
			if p.ID != viewerID {
				out.Participants = append(out.Participants, p)
			}
		}
	}
	return out
}
