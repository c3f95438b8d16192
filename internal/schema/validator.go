// Package schema validates recognition settings and outgoing transcript events.
package schema

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"

	"live-transcript-service/internal/models"
)

var (
	ErrInvalidLanguage        = errors.New("invalid language tag")
	ErrConfidenceOutOfRange   = errors.New("confidence out of range")
	ErrInvalidMaxAlternatives = errors.New("max alternatives must be 5 or 10")
	ErrInvalidEvent           = errors.New("invalid transcript event")
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// ValidateLanguage checks that tag is a well-formed BCP 47 tag.
func (v *Validator) ValidateLanguage(tag string) error {
	if tag == "" {
		return fmt.Errorf("%w: empty", ErrInvalidLanguage)
	}
	if _, err := language.Parse(tag); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidLanguage, tag, err)
	}
	return nil
}

// ValidateConfidence checks that value lies in [0,1].
func (v *Validator) ValidateConfidence(name string, value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("%w: %s=%v", ErrConfidenceOutOfRange, name, value)
	}
	return nil
}

func (v *Validator) ValidateMaxAlternatives(n int) error {
	if n != 5 && n != 10 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxAlternatives, n)
	}
	return nil
}

// Validate checks an outgoing transcript event before it is published.
func (v *Validator) Validate(event any) error {
	switch ev := event.(type) {
	case models.TranscriptPartial:
		if ev.EventType != models.EventTypePartial || ev.SessionID == "" {
			return fmt.Errorf("%w: partial %+v", ErrInvalidEvent, ev)
		}
	case models.TranscriptFinal:
		if ev.EventType != models.EventTypeFinal || ev.SessionID == "" || ev.Text == "" {
			return fmt.Errorf("%w: final %+v", ErrInvalidEvent, ev)
		}
		if err := v.ValidateConfidence("confidence", ev.Confidence); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidEvent, event)
	}
	return nil
}
