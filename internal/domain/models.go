package domain

// Medal is a discrete achievement tier awarded from a quiz result.
type Medal string

const (
	MedalNone     Medal = ""
	MedalBronze   Medal = "bronze"
	MedalSilver   Medal = "silver"
	MedalGold     Medal = "gold"
	MedalPlatinum Medal = "platinum"
	MedalEmerald  Medal = "emerald"
)

// Question models an MCQ question with exactly one correct option.
// CorrectAnswer must be a member of Options.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Hint          string   `json:"hint,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// Quiz is a dated, topic-labeled set of questions with a time limit.
// At most one quiz exists per calendar date.
type Quiz struct {
	ID            string     `json:"id"`
	Date          string     `json:"date"` // YYYY-MM-DD, local wall clock
	Topic         string     `json:"topic"`
	TimerMinutes  int        `json:"timer"`
	Questions     []Question `json:"questions"`
	MegaQuestions []Question `json:"megaQuizQuestions,omitempty"`
	DailyScores   []int      `json:"dailyScores,omitempty"`
}

// HasMegaPool reports whether the quiz carries a bonus question pool.
func (q Quiz) HasMegaPool() bool {
	return len(q.MegaQuestions) > 0
}

// SavedProgress is the serialized form of an in-flight session, written to
// the single resumable-progress slot.
type SavedProgress struct {
	QuizID        string     `json:"quizId"`
	QuestionIndex int        `json:"currentQuestionIndex"`
	Answers       []string   `json:"answers"`
	TimeLeft      int        `json:"timeLeft"`
	Questions     []Question `json:"questions"`
	MegaUnlocked  bool       `json:"isMegaQuizUnlocked"`
}

// Result is the immutable snapshot produced when a session terminates.
// Date carries the quiz's calendar day so the result stays resolvable against
// its quiz after midnight.
type Result struct {
	QuizID         string     `json:"quizId"`
	Date           string     `json:"date"`
	Score          int        `json:"score"`
	TotalQuestions int        `json:"totalQuestions"`
	Answers        []string   `json:"answers"`
	Questions      []Question `json:"questions"`
	Mega           bool       `json:"isMega"`
}

// AnswerReview is one row of the per-question result breakdown.
type AnswerReview struct {
	Question    string `json:"question"`
	UserAnswer  string `json:"userAnswer"`
	Correct     bool   `json:"correct"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation,omitempty"`
}

// ResultView is the recomputed presentation of a Result: medal, percentile
// and the answer review.
type ResultView struct {
	QuizID         string         `json:"quizId"`
	Topic          string         `json:"topic"`
	Score          int            `json:"score"`
	TotalQuestions int            `json:"totalQuestions"`
	Medal          Medal          `json:"medal,omitempty"`
	Percentile     int            `json:"percentile"`
	TopPercent     int            `json:"topPercent"`
	Mega           bool           `json:"isMega"`
	Review         []AnswerReview `json:"review"`
}

// QuizAttempt is one day's recorded outcome in the user's history.
type QuizAttempt struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Medal Medal  `json:"medal"`
	Score int    `json:"score"`
	Total int    `json:"total"`
}

// Badge is the outcome of the achievement-badge generation call.
type Badge struct {
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}
