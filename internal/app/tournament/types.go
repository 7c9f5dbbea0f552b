package tournament

import (
	"encoding/json"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/store"
)

type CreateRequest struct {
	Title      string    `json:"title" validate:"required,min=3,max=120"`
	Game       string    `json:"game" validate:"required,max=64"`
	CategoryID string    `json:"category_id" validate:"max=64"`
	EntryFee   int64     `json:"entry_fee" validate:"gte=0"`
	MaxSlots   int64     `json:"max_slots" validate:"required,gt=0,lte=100000"`
	StartsAt   time.Time `json:"starts_at" validate:"required"`
}

// EditRequest changes metadata only. Capacity and entry fee are fixed at
// creation.
type EditRequest struct {
	Title      *string    `json:"title" validate:"omitempty,min=3,max=120"`
	Game       *string    `json:"game" validate:"omitempty,max=64"`
	CategoryID *string    `json:"category_id" validate:"omitempty,max=64"`
	StartsAt   *time.Time `json:"starts_at"`
	Status     *string    `json:"status" validate:"omitempty,oneof=open active closed"`
}

type ListResponse struct {
	Items []store.Tournament `json:"items"`
}

// PublicMember is the listing view of a membership. Contact and payment
// fields are left out.
type PublicMember struct {
	DisplayName string    `json:"display_name"`
	GameHandle  string    `json:"game_handle"`
	Status      string    `json:"status"`
	JoinedAt    time.Time `json:"joined_at"`
}

func PublicMemberOf(m store.Membership) PublicMember {
	return PublicMember{
		DisplayName: m.DisplayName,
		GameHandle:  m.GameHandle,
		Status:      m.Status,
		JoinedAt:    m.JoinedAt,
	}
}

// PublicMemberJSON re-encodes a stored membership document as PublicMember.
func PublicMemberJSON(data []byte) ([]byte, error) {
	var m store.Membership
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return json.Marshal(PublicMemberOf(m))
}

type MembersResponse struct {
	Items  []PublicMember `json:"items"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// RosterResponse is the admin view with full membership documents.
type RosterResponse struct {
	Items  []store.Membership `json:"items"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}
