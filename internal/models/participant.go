package models

// Role is a participant's role relative to one project
type Role string

const (
	RoleClient     Role = "Client"
	RoleFreelancer Role = "Freelancer"
	RoleUser       Role = "User"
)

// Participant is a counterpart the current user can message within a project
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// ParticipantFromSummary copies the non-role fields of an embedded user.
func ParticipantFromSummary(summary UserSummary) Participant {
	return Participant{
		ID:     summary.ID,
		Name:   summary.Name,
		Email:  summary.Email,
		Avatar: summary.Avatar,
	}
}

// DisplayName falls back to the email, then the id, when no name is known.
func (p Participant) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Email != "":
		return p.Email
	default:
		return p.ID
	}
}
