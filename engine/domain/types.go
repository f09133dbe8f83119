// Package domain defines the core FAQ types, the error taxonomy, and input
// validation shared by the engine packages and the API.
package domain

import "time"

// Entry is one question/answer pair from the knowledge set. Position is the
// entry's index in the source list and breaks score ties during search.
type Entry struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
	Position int    `json:"index" yaml:"-"`
}

// Hit is a single nearest-neighbour match for a query vector.
type Hit struct {
	ID       string  `json:"id"`
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float32 `json:"score"`
	Position int     `json:"index"`
}

// SubjectAnswered is the NATS subject answer events are published on.
const SubjectAnswered = "qa.answered"

// AnswerEvent records the outcome of one answered query.
type AnswerEvent struct {
	Query    string    `json:"query"`
	Matched  string    `json:"matched,omitempty"`
	Score    float32   `json:"score"`
	Found    bool      `json:"found"`
	At       time.Time `json:"at"`
	Duration float64   `json:"duration_ms"`
}
