package tournament

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/catalog"
	"github.com/airstudent2/Tournament-200-26/internal/store"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
)

const maxSlugLen = 48

type Service struct {
	rs      store.RecordStore
	catalog *catalog.Catalog
}

func NewService(rs store.RecordStore, c *catalog.Catalog) *Service {
	return &Service{rs: rs, catalog: c}
}

// NewTournamentID is a readable slug of the title plus a short ULID suffix.
func NewTournamentID(title string) string {
	base := slug.Make(title)
	if len(base) > maxSlugLen {
		base = strings.Trim(base[:maxSlugLen], "-")
	}
	if base == "" {
		base = "tournament"
	}
	id := strings.ToLower(store.NewID())
	return base + "-" + id[len(id)-6:]
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (store.Tournament, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.MaxSlots <= 0 || req.EntryFee < 0 {
		return store.Tournament{}, ErrInvalidRequest
	}
	now := time.Now().UTC()
	t := store.Tournament{
		ID:         NewTournamentID(req.Title),
		Title:      req.Title,
		Game:       strings.TrimSpace(req.Game),
		CategoryID: req.CategoryID,
		EntryFee:   req.EntryFee,
		MaxSlots:   req.MaxSlots,
		Status:     store.TournamentOpen,
		StartsAt:   req.StartsAt.UTC(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := store.CreateJSON(ctx, s.rs, store.TournamentKey(t.ID), t); err != nil {
		return store.Tournament{}, err
	}
	log.Info().Str("tournament_id", t.ID).Int64("max_slots", t.MaxSlots).Int64("entry_fee", t.EntryFee).Msg("tournament created")
	return t, nil
}

func (s *Service) Edit(ctx context.Context, id string, req EditRequest) (store.Tournament, error) {
	if req.Status != nil {
		switch *req.Status {
		case store.TournamentOpen, store.TournamentActive, store.TournamentClosed:
		default:
			return store.Tournament{}, ErrInvalidRequest
		}
	}
	t, err := store.UpdateJSON(ctx, s.rs, store.TournamentKey(id), func(t *store.Tournament) error {
		if req.Title != nil {
			t.Title = strings.TrimSpace(*req.Title)
		}
		if req.Game != nil {
			t.Game = strings.TrimSpace(*req.Game)
		}
		if req.CategoryID != nil {
			t.CategoryID = *req.CategoryID
		}
		if req.StartsAt != nil {
			t.StartsAt = req.StartsAt.UTC()
		}
		if req.Status != nil {
			t.Status = *req.Status
		}
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return store.Tournament{}, ErrTournamentNotFound
	}
	return t, err
}

func (s *Service) Get(ctx context.Context, id string) (store.Tournament, error) {
	t, err := s.catalog.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Tournament{}, ErrTournamentNotFound
	}
	return t, err
}

// List returns cached tournaments, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string) (*ListResponse, error) {
	ts, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]store.Tournament, 0, len(ts))
	for _, t := range ts {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return &ListResponse{Items: out}, nil
}

// Members is the public member listing.
func (s *Service) Members(ctx context.Context, id string, limit, offset int) (*MembersResponse, error) {
	items, err := s.memberships(ctx, id, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]PublicMember, 0, len(items))
	for _, m := range items {
		out = append(out, PublicMemberOf(m))
	}
	return &MembersResponse{Items: out, Limit: limit, Offset: offset}, nil
}

// Roster lists full membership documents for admins.
func (s *Service) Roster(ctx context.Context, id string, limit, offset int) (*RosterResponse, error) {
	items, err := s.memberships(ctx, id, limit, offset)
	if err != nil {
		return nil, err
	}
	return &RosterResponse{Items: items, Limit: limit, Offset: offset}, nil
}

func (s *Service) memberships(ctx context.Context, id string, limit, offset int) ([]store.Membership, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return store.ListJSON[store.Membership](ctx, s.rs, store.MembershipPrefix(id), limit, offset)
}
