package models

import (
	"encoding/json"
	"time"
)

// BidStatus is the lifecycle state of a bid
type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidAccepted BidStatus = "accepted"
	BidRejected BidStatus = "rejected"
)

// Project statuses
const (
	ProjectOpen       = "open"
	ProjectInProgress = "in_progress"
)

// Project is a posted job. Owner is the client who posted it.
type Project struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Owner       UserRef   `json:"clientId"`
	Budget      float64   `json:"budget,omitempty"`
	Status      string    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts "_id" or "id", string or numeric, for the project id.
func (p *Project) UnmarshalJSON(data []byte) error {
	type plain Project
	var decoded struct {
		plain
		ID json.RawMessage `json:"_id"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = Project(decoded.plain)
	p.ID = ResolveID(data)
	return nil
}

// Bid is a freelancer's offer on a project
type Bid struct {
	ID         string    `json:"_id"`
	ProjectID  string    `json:"projectId"`
	Freelancer UserRef   `json:"freelancerId"`
	Amount     float64   `json:"amount"`
	Proposal   string    `json:"proposal,omitempty"`
	Status     BidStatus `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts "_id" or "id", string or numeric, for the bid id.
func (b *Bid) UnmarshalJSON(data []byte) error {
	type plain Bid
	var decoded struct {
		plain
		ID json.RawMessage `json:"_id"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*b = Bid(decoded.plain)
	b.ID = ResolveID(data)
	return nil
}

// AcceptedBid returns the first accepted bid, if any.
func AcceptedBid(bids []Bid) (Bid, bool) {
	for _, bid := range bids {
		if bid.Status == BidAccepted {
			return bid, true
		}
	}
	return Bid{}, false
}

// ProjectInput contains data needed to post a project
type ProjectInput struct {
	Title       string  `json:"title" binding:"required,min=3,max=120"`
	Description string  `json:"description"`
	Budget      float64 `json:"budget" binding:"gte=0"`
}

// BidInput contains data needed to bid on a project
type BidInput struct {
	ProjectID string  `json:"projectId" binding:"required"`
	Amount    float64 `json:"amount" binding:"gt=0"`
	Proposal  string  `json:"proposal"`
}
