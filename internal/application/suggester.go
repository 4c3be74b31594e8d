package application

import (
	"fmt"

	"github.com/ericfisherdev/mykeyring/internal/domain/port/driven"
)

// fragmentLength is the number of characters drawn per fragment.
const fragmentLength = 6

// Suggester produces password-like values from two independently drawn
// random fragments. It makes no entropy or character-class guarantees.
type Suggester struct {
	source driven.RandomSource
}

// NewSuggester creates a Suggester drawing from source.
func NewSuggester(source driven.RandomSource) *Suggester {
	return &Suggester{source: source}
}

// Suggest returns a fresh suggested password.
func (s *Suggester) Suggest() (string, error) {
	first, err := s.source.Fragment(fragmentLength)
	if err != nil {
		return "", fmt.Errorf("draw first fragment: %w", err)
	}
	second, err := s.source.Fragment(fragmentLength)
	if err != nil {
		return "", fmt.Errorf("draw second fragment: %w", err)
	}
	return first + second, nil
}
