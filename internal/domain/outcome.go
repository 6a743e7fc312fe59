package domain

// SubmitOutcome is the kind of result a flag submission produced
type SubmitOutcome string

const (
	SubmitSolved        SubmitOutcome = "solved"
	SubmitAlreadySolved SubmitOutcome = "already_solved"
	SubmitIncorrectFlag SubmitOutcome = "incorrect_flag"
)

// SubmitResult is returned by a flag submission.
// PointsAwarded is zero unless Outcome is SubmitSolved.
type SubmitResult struct {
	Outcome       SubmitOutcome `json:"outcome"`
	ChallengeID   int64         `json:"challenge_id"`
	PointsAwarded int           `json:"points_added"`
	Score         int           `json:"new_score"`
	Rank          Rank          `json:"new_rank"`
	PreviousRank  Rank          `json:"previous_rank"`
}

// Correct reports whether the submission matched the flag, now or earlier
func (r *SubmitResult) Correct() bool {
	return r.Outcome == SubmitSolved || r.Outcome == SubmitAlreadySolved
}

// RankChanged reports whether this submission moved the user to another tier
func (r *SubmitResult) RankChanged() bool {
	return r.PreviousRank != "" && r.PreviousRank != r.Rank
}

// Message is a human readable summary of the outcome
func (r *SubmitResult) Message() string {
	switch r.Outcome {
	case SubmitSolved:
		return "Correct flag"
	case SubmitAlreadySolved:
		return "Challenge already solved"
	default:
		return "Incorrect flag"
	}
}

// UnlockOutcome is the kind of result a hint unlock produced
type UnlockOutcome string

const (
	UnlockUnlocked          UnlockOutcome = "unlocked"
	UnlockAlreadyUnlocked   UnlockOutcome = "already_unlocked"
	UnlockInsufficientScore UnlockOutcome = "insufficient_score"
)

// UnlockResult is returned by a hint unlock.
// Hint is only set when the hint is (or already was) unlocked.
type UnlockResult struct {
	Outcome      UnlockOutcome `json:"outcome"`
	ChallengeID  int64         `json:"challenge_id"`
	Hint         string        `json:"hint,omitempty"`
	CostDeducted int           `json:"cost_deducted"`
	Score        int           `json:"new_score"`
	Rank         Rank          `json:"new_rank"`
}

// Message is a human readable summary of the outcome
func (r *UnlockResult) Message() string {
	switch r.Outcome {
	case UnlockUnlocked:
		return "Hint unlocked"
	case UnlockAlreadyUnlocked:
		return "Hint already unlocked"
	default:
		return "Insufficient score to unlock hint"
	}
}
