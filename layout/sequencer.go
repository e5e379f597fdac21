package layout

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTemplate = errors.New("unknown page template")
	ErrTemplateOrder   = errors.New("page template out of order")
)

// Sequencer is "current template" state machine. Templates only move forward
// Cover -> Title -> content pair -> FullImage -> Final, switch takes effect
// on the next page, never mid page.
type Sequencer struct {
	reg     *Registry
	current []TemplateID
	pending []TemplateID
}

// NewSequencer starts with Cover template.
func NewSequencer(reg *Registry) *Sequencer {
	return &Sequencer{reg: reg, current: []TemplateID{TemplateCover}}
}

// Switch requests template for the pages following the next page break. Two
// ids select alternating pair, which one is used is decided by physical page
// parity: first id for odd pages.
func (s *Sequencer) Switch(ids ...TemplateID) error {
	switch len(ids) {
	case 1:
	case 2:
		if ids[0] != TemplateContentOdd || ids[1] != TemplateContentEven {
			return fmt.Errorf("%w: %s/%s is not alternating pair", ErrTemplateOrder, ids[0], ids[1])
		}
	default:
		return fmt.Errorf("%w: switch needs one or two templates, got %d", ErrTemplateOrder, len(ids))
	}
	for _, id := range ids {
		if !s.reg.Has(id) {
			return fmt.Errorf("%w: %s", ErrUnknownTemplate, id)
		}
	}
	last := s.current[0]
	if len(s.pending) > 0 {
		last = s.pending[0]
	}
	if ids[0].stage() < last.stage() {
		return fmt.Errorf("%w: %s requested after %s", ErrTemplateOrder, ids[0], last)
	}
	s.pending = append(s.pending[:0], ids...)
	return nil
}

// BeginPage applies pending switch and returns template for the new page.
func (s *Sequencer) BeginPage(physical int) (*Template, error) {
	if len(s.pending) > 0 {
		s.current = append([]TemplateID(nil), s.pending...)
		s.pending = s.pending[:0]
	}
	id := s.current[0]
	if len(s.current) == 2 && physical%2 == 0 {
		id = s.current[1]
	}
	return s.reg.Get(id)
}
