package conversation

import "github.com/ammar1510/gigchat/internal/models"

// DeriveParticipants builds the set of people currentUserID can message on
// project. Sources are merged in order: existing conversations, then the
// project owner (when the viewer is not the owner), then the freelancer on
// the accepted bid (when the viewer is the owner). Entries are
// de-duplicated by id with the first occurrence keeping its fields, and every
// role is recomputed from the owner and freelancer ids at the end.
func DeriveParticipants(currentUserID string, project models.Project, bids []models.Bid, conversations []models.UserSummary) []models.Participant {
	ownerID := project.Owner.ID
	var freelancer models.UserRef
	if bid, ok := models.AcceptedBid(bids); ok {
		freelancer = bid.Freelancer
	}

	roleOf := func(id string) models.Role {
		switch {
		case id != "" && id == ownerID:
			return models.RoleClient
		case id != "" && id == freelancer.ID:
			return models.RoleFreelancer
		default:
			return models.RoleUser
		}
	}

	participants := make([]models.Participant, 0, len(conversations)+1)
	seen := make(map[string]bool, len(conversations)+1)
	add := func(p models.Participant) {
		if p.ID == "" || seen[p.ID] {
			return
		}
		seen[p.ID] = true
		participants = append(participants, p)
	}

	for _, summary := range conversations {
		add(models.ParticipantFromSummary(summary))
	}
	if ownerID != "" && currentUserID != ownerID {
		add(participantFromRef(project.Owner))
	}
	if ownerID != "" && currentUserID == ownerID && freelancer.ID != "" {
		add(participantFromRef(freelancer))
	}

	for i := range participants {
		participants[i].Role = roleOf(participants[i].ID)
	}
	return participants
}

func participantFromRef(ref models.UserRef) models.Participant {
	if ref.User == nil {
		return models.Participant{ID: ref.ID}
	}
	p := models.ParticipantFromSummary(*ref.User)
	p.ID = ref.ID
	return p
}
