package codeforces

// ══════════════════════════════════════════════════════════════════════════════
// API RESPONSE WRAPPERS
// ══════════════════════════════════════════════════════════════════════════════

// Envelope statuses.
const (
	StatusOK     = "OK"
	StatusFailed = "FAILED"
)

// APIResponse is the envelope every Codeforces method returns.
// On failure Status is "FAILED" and Comment explains why.
type APIResponse[T any] struct {
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
	Result  T      `json:"result"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DTOs
// ══════════════════════════════════════════════════════════════════════════════

// UserDTO is an element of user.info.
type UserDTO struct {
	Handle     string `json:"handle"`
	Email      string `json:"email,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Rating     int    `json:"rating,omitempty"`
	MaxRating  int    `json:"maxRating,omitempty"`
	Rank       string `json:"rank,omitempty"`
	MaxRank    string `json:"maxRank,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	TitlePhoto string `json:"titlePhoto,omitempty"`
}

// ProblemDTO is the problem object embedded in a submission.
type ProblemDTO struct {
	ContestID int      `json:"contestId"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    *int     `json:"rating,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// SubmissionDTO is an element of user.status.
type SubmissionDTO struct {
	ID                  int64      `json:"id"`
	ContestID           int        `json:"contestId"`
	CreationTimeSeconds int64      `json:"creationTimeSeconds"`
	Problem             ProblemDTO `json:"problem"`
	ProgrammingLanguage string     `json:"programmingLanguage,omitempty"`

	// Verdict is absent while the submission is being judged.
	Verdict string `json:"verdict,omitempty"`
}

// RatingChangeDTO is an element of user.rating.
type RatingChangeDTO struct {
	ContestID               int    `json:"contestId"`
	ContestName             string `json:"contestName"`
	Handle                  string `json:"handle"`
	Rank                    int    `json:"rank"`
	RatingUpdateTimeSeconds int64  `json:"ratingUpdateTimeSeconds"`
	OldRating               int    `json:"oldRating"`
	NewRating               int    `json:"newRating"`
}
