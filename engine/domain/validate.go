package domain

import "strings"

// ValidateQuestion rejects empty and whitespace-only questions.
func ValidateQuestion(q string) error {
	if strings.TrimSpace(q) == "" {
		return NewValidationError("question", q, ErrEmptyQuestion)
	}
	return nil
}

// ValidateEntry checks that a knowledge entry has both a question and an answer.
func ValidateEntry(e Entry) error {
	if strings.TrimSpace(e.Question) == "" {
		return NewValidationError("question", e.Question, ErrEmptyQuestion)
	}
	if strings.TrimSpace(e.Answer) == "" {
		return NewValidationError("answer", e.Question, ErrEmptyAnswer)
	}
	return nil
}
