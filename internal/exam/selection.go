package exam

import (
	"fmt"
	"math/rand"
	"strings"
)

// InsufficientQuestionsError reports a random-selection request larger than
// the qualifying pool. The exam's current selection is left untouched.
type InsufficientQuestionsError struct {
	Subject   string
	Requested int
	Available int
}

func (e *InsufficientQuestionsError) Error() string {
	return fmt.Sprintf("only %d questions available for subject %q, requested %d",
		e.Available, e.Subject, e.Requested)
}

// RandomSelection picks n question ids uniformly at random from the bank
// entries whose subject matches (case-insensitive, whitespace-trimmed).
// Fisher-Yates over the qualifying pool keeps the draw unbiased.
func RandomSelection(bank []Question, subject string, n int, rng *rand.Rand) ([]string, error) {
	want := strings.ToLower(strings.TrimSpace(subject))
	if want == "" {
		return nil, ErrMissingSubject
	}
	if n <= 0 {
		return nil, fmt.Errorf("selection count must be positive, got %d", n)
	}
	var pool []string
	for _, q := range bank {
		if strings.ToLower(strings.TrimSpace(q.Subject)) == want {
			pool = append(pool, q.ID)
		}
	}
	if len(pool) < n {
		return nil, &InsufficientQuestionsError{Subject: subject, Requested: n, Available: len(pool)}
	}
	for i := len(pool) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n], nil
}
