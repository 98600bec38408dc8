package app

import (
	"math"
	"math/rand"

	"dailyquiz-service/internal/domain"
)

// megaTrackThreshold routes medal classification to the mega track. The
// branch is on total question count, not on the session's mega flag, matching
// how results have always been computed.
const megaTrackThreshold = 20

// Score counts index-wise exact matches between questions and answers.
// Unanswered (empty) slots count as incorrect. A length mismatch is a
// data-integrity error and is never absorbed.
func Score(questions []domain.Question, answers []string) (int, error) {
	if len(questions) != len(answers) {
		return 0, domain.ErrAnswerCountMismatch
	}
	score := 0
	for i, q := range questions {
		if q.CorrectAnswer == answers[i] {
			score++
		}
	}
	return score, nil
}

// ClassifyMedal maps a score onto a medal tier. Quizzes of megaTrackThreshold
// or more questions use the mega tiers (emerald, platinum); smaller quizzes
// use the daily tiers (gold, silver, bronze).
func ClassifyMedal(score, total int) domain.Medal {
	if total <= 0 {
		return domain.MedalNone
	}
	percentage := float64(score) / float64(total) * 100

	if total >= megaTrackThreshold {
		switch {
		case percentage >= 100:
			return domain.MedalEmerald
		case percentage >= 75:
			return domain.MedalPlatinum
		}
		return domain.MedalNone
	}

	switch {
	case percentage >= 100:
		return domain.MedalGold
	case percentage >= 80:
		return domain.MedalSilver
	case percentage >= 50:
		return domain.MedalBronze
	}
	return domain.MedalNone
}

// Percentile ranks a score against a historical sample: the rounded share of
// sample scores strictly below it. An empty sample ranks at 100.
func Percentile(score int, sample []int) int {
	if len(sample) == 0 {
		return 100
	}
	below := 0
	for _, s := range sample {
		if s < score {
			below++
		}
	}
	return int(math.Round(float64(below) / float64(len(sample)) * 100))
}

// shuffled returns a Fisher-Yates permutation of questions without mutating
// the input.
func shuffled(rnd *rand.Rand, questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	for i := len(out) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
