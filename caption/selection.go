package caption

import "fmt"

// Selection tracks the generated captions, the one that is selected, and the
// presentation state used for compositing.
type Selection struct {
	captions []Caption
	index    int
	edited   *Caption

	Mode  OverlayMode
	Style Style
}

// NewSelection selects the first caption. captions must be non-empty.
func NewSelection(captions []Caption) (*Selection, error) {
	if len(captions) == 0 {
		return nil, fmt.Errorf("no captions to select from")
	}
	cp := make([]Caption, len(captions))
	copy(cp, captions)
	return &Selection{
		captions: cp,
		Mode:     ModeOverlay,
		Style:    StyleStandard,
	}, nil
}

// Captions returns the generated set.
func (s *Selection) Captions() []Caption {
	out := make([]Caption, len(s.captions))
	copy(out, s.captions)
	return out
}

// Index is the position of the selected caption.
func (s *Selection) Index() int {
	return s.index
}

// Select moves the selection and drops any pending edit.
func (s *Selection) Select(i int) error {
	if i < 0 || i >= len(s.captions) {
		return fmt.Errorf("caption %d out of range [0, %d)", i, len(s.captions))
	}
	s.index = i
	s.edited = nil
	return nil
}

// Edit replaces the selected caption wholesale.
func (s *Selection) Edit(c Caption) {
	c.Tags = append([]string(nil), c.Tags...)
	s.edited = &c
}

// Edited reports whether the selected caption is a user edit.
func (s *Selection) Edited() bool {
	return s.edited != nil
}

// Selected returns a snapshot of the selected caption.
func (s *Selection) Selected() Caption {
	c := s.captions[s.index]
	if s.edited != nil {
		c = *s.edited
	}
	c.Tags = append([]string(nil), c.Tags...)
	return c
}
