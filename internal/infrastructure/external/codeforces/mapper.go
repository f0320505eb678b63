package codeforces

import (
	"github.com/MrF1yn/TLE-Codeforces-tracker/internal/domain/judge"
)

// Mapper converts API DTOs to judge domain types.
type Mapper struct{}

// NewMapper creates a new mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Profile maps a user.info element.
func (m *Mapper) Profile(dto UserDTO) *judge.Profile {
	return &judge.Profile{
		Handle:     dto.Handle,
		Email:      dto.Email,
		Rank:       dto.Rank,
		MaxRank:    dto.MaxRank,
		TitlePhoto: dto.TitlePhoto,
		Rating:     dto.Rating,
		MaxRating:  dto.MaxRating,
	}
}

// Submissions maps user.status elements, preserving order.
func (m *Mapper) Submissions(dtos []SubmissionDTO) []judge.Submission {
	out := make([]judge.Submission, 0, len(dtos))
	for _, d := range dtos {
		var rating *int
		if d.Problem.Rating != nil {
			r := *d.Problem.Rating
			rating = &r
		}
		out = append(out, judge.Submission{
			ID:        d.ID,
			ContestID: d.ContestID,
			Problem: judge.Problem{
				ContestID: d.Problem.ContestID,
				Index:     d.Problem.Index,
				Name:      d.Problem.Name,
				Rating:    rating,
			},
			Verdict:   d.Verdict,
			CreatedAt: d.CreationTimeSeconds,
		})
	}
	return out
}

// RatingChanges maps user.rating elements, preserving order.
func (m *Mapper) RatingChanges(dtos []RatingChangeDTO) []judge.RatingChange {
	out := make([]judge.RatingChange, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, judge.RatingChange{
			ContestID:   d.ContestID,
			ContestName: d.ContestName,
			Rank:        d.Rank,
			OldRating:   d.OldRating,
			NewRating:   d.NewRating,
			UpdatedAt:   d.RatingUpdateTimeSeconds,
		})
	}
	return out
}
