package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// Coach is a read-only view of the coach directory.
type Coach struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Email           string         `db:"email" json:"email"`
	Specialties     pq.StringArray `db:"specialties" json:"specialties"`
	Rating          float64        `db:"rating" json:"rating"`
	ExperienceLabel string         `db:"experience_label" json:"experience_label"`
	Active          bool           `db:"active" json:"active"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// CoachFilter narrows directory listings.
type CoachFilter struct {
	Specialties []string
	ActiveOnly  bool
}

// MatchesAny reports whether any specialty equals one of the tags, ignoring case.
func (c Coach) MatchesAny(tags []string) bool {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		for _, specialty := range c.Specialties {
			if strings.EqualFold(strings.TrimSpace(specialty), tag) {
				return true
			}
		}
	}
	return false
}
