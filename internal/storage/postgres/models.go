package postgres

import (
	"time"

	"github.com/google/uuid"
)

// NewsPost is an association-wide or club-scoped announcement.
type NewsPost struct {
	ID            uuid.UUID
	Title         string
	Body          string
	AuthorSubject string
	ClubID        *string
	Published     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CreateNewsPostParams struct {
	ID            uuid.UUID
	Title         string
	Body          string
	AuthorSubject string
	ClubID        *string
	Published     bool
}

type UpdateNewsPostParams struct {
	ID        uuid.UUID
	Title     string
	Body      string
	Published bool
}

// Club is a student club profile. The ID is the club slug and doubles as the
// club_id claim carried in club representative sessions.
type Club struct {
	ID          string
	Name        string
	Description string
	Website     *string
	RepSubject  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UpdateClubParams struct {
	ID          string
	Name        string
	Description string
	Website     *string
}
