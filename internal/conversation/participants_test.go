package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ammar1510/gigchat/internal/models"
)

func ids(participants []models.Participant) []string {
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		out = append(out, p.ID)
	}
	return out
}

func TestDeriveParticipants(t *testing.T) {
	project := models.Project{
		ID:    "P1",
		Owner: models.UserRef{ID: "U1", User: &models.UserSummary{ID: "U1", Name: "Olivia Owner"}},
	}
	acceptedU2 := []models.Bid{
		{ID: "b0", Freelancer: models.Ref("U9"), Status: models.BidRejected},
		{ID: "b1", Freelancer: models.UserRef{ID: "U2", User: &models.UserSummary{ID: "U2", Name: "Fred"}}, Status: models.BidAccepted},
	}

	tests := []struct {
		name          string
		currentUser   string
		bids          []models.Bid
		conversations []models.UserSummary
		want          []models.Participant
	}{
		{
			name:        "owner sees accepted freelancer",
			currentUser: "U1",
			bids:        acceptedU2,
			want:        []models.Participant{{ID: "U2", Name: "Fred", Role: models.RoleFreelancer}},
		},
		{
			name:        "freelancer sees client",
			currentUser: "U2",
			bids:        acceptedU2,
			want:        []models.Participant{{ID: "U1", Name: "Olivia Owner", Role: models.RoleClient}},
		},
		{
			name:        "freelancer without accepted bid still sees client",
			currentUser: "U2",
			want:        []models.Participant{{ID: "U1", Name: "Olivia Owner", Role: models.RoleClient}},
		},
		{
			name:        "owner without accepted bid has nobody",
			currentUser: "U1",
			bids:        acceptedU2[:1],
			want:        []models.Participant{},
		},
		{
			name:        "other conversations are tagged User",
			currentUser: "U2",
			bids:        acceptedU2,
			conversations: []models.UserSummary{
				{ID: "U7", Name: "Sam", Email: "sam@example.com"},
			},
			want: []models.Participant{
				{ID: "U7", Name: "Sam", Email: "sam@example.com", Role: models.RoleUser},
				{ID: "U1", Name: "Olivia Owner", Role: models.RoleClient},
			},
		},
		{
			name:        "first occurrence keeps its fields",
			currentUser: "U2",
			conversations: []models.UserSummary{
				{ID: "U1", Name: "From Conversations", Avatar: "a.png"},
				{ID: "U1", Name: "Duplicate"},
			},
			want: []models.Participant{
				{ID: "U1", Name: "From Conversations", Avatar: "a.png", Role: models.RoleClient},
			},
		},
		{
			name:          "entries without id are ignored",
			currentUser:   "U2",
			conversations: []models.UserSummary{{Name: "ghost"}},
			want:          []models.Participant{{ID: "U1", Name: "Olivia Owner", Role: models.RoleClient}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveParticipants(tt.currentUser, project, tt.bids, tt.conversations)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveParticipantsDeduplicatesOwnerAndAddsFreelancer(t *testing.T) {
	project := models.Project{ID: "P1", Owner: models.Ref("U1")}
	bids := []models.Bid{{ID: "b1", Freelancer: models.Ref("U2"), Status: models.BidAccepted}}
	conversations := []models.UserSummary{
		{ID: "U1", Name: "Owner"},
		{ID: "U5", Name: "Other"},
	}

	got := DeriveParticipants("U1", project, bids, conversations)

	assert.Len(t, got, len(conversations)+1)
	assert.Equal(t, []string{"U1", "U5", "U2"}, ids(got))

	owners := 0
	for _, p := range got {
		if p.ID == "U1" {
			owners++
			assert.Equal(t, models.RoleClient, p.Role)
		}
	}
	assert.Equal(t, 1, owners)
	assert.Equal(t, models.RoleFreelancer, got[2].Role)
}

func TestDeriveParticipantsRestampsRoles(t *testing.T) {
	project := models.Project{ID: "P1", Owner: models.Ref("U1")}
	bids := []models.Bid{{ID: "b1", Freelancer: models.Ref("U2"), Status: models.BidAccepted}}
	conversations := []models.UserSummary{
		{ID: "U1", Name: "Owner", Role: "User"},
		{ID: "U2", Name: "Fred", Role: "Client"},
	}

	got := DeriveParticipants("U3", project, bids, conversations)

	assert.Equal(t, []string{"U1", "U2"}, ids(got))
	assert.Equal(t, models.RoleClient, got[0].Role)
	assert.Equal(t, models.RoleFreelancer, got[1].Role)
}

func TestDeriveParticipantsIsDeterministic(t *testing.T) {
	project := models.Project{ID: "P1", Owner: models.Ref("U1")}
	conversations := []models.UserSummary{{ID: "U4"}, {ID: "U3"}, {ID: "U5"}}

	first := DeriveParticipants("U2", project, nil, conversations)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DeriveParticipants("U2", project, nil, conversations))
	}
}
