package model

import (
	"fmt"
	"strconv"
)

// Scale is a zoom factor applied to a rendered page. Only the values listed in
// Scales are accepted anywhere in the system.
type Scale float64

const (
	ScaleNormal Scale = 1.0
	ScaleZoomed Scale = 1.5
)

// Scales is the enumerated set of supported zoom factors, in toggle order.
var Scales = []Scale{ScaleNormal, ScaleZoomed}

// Valid reports whether s belongs to Scales.
func (s Scale) Valid() bool {
	for _, v := range Scales {
		if v == s {
			return true
		}
	}
	return false
}

// Next returns the scale following s in Scales, wrapping around.
func (s Scale) Next() Scale {
	for i, v := range Scales {
		if v == s {
			return Scales[(i+1)%len(Scales)]
		}
	}
	return ScaleNormal
}

// String renders the scale the way it is sent on the wire ("1.0", "1.5").
func (s Scale) String() string {
	return strconv.FormatFloat(float64(s), 'f', 1, 64)
}

// ParseScale parses a wire value and rejects scales outside Scales.
func ParseScale(v string) (Scale, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse scale %q: %w", v, err)
	}
	s := Scale(f)
	if !s.Valid() {
		return 0, fmt.Errorf("unsupported scale %s", s)
	}
	return s, nil
}

// PreviewTarget identifies one page of one document at one scale. It fully
// determines a preview request.
type PreviewTarget struct {
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	Scale      Scale  `json:"scale"`
}

// FirstPage is the target a preview opens on.
func FirstPage(documentID string) PreviewTarget {
	return PreviewTarget{DocumentID: documentID, Page: 0, Scale: ScaleNormal}
}

// WithPage returns a copy of t pointing at page.
func (t PreviewTarget) WithPage(page int) PreviewTarget {
	t.Page = page
	return t
}

// WithScale returns a copy of t at scale.
func (t PreviewTarget) WithScale(scale Scale) PreviewTarget {
	t.Scale = scale
	return t
}

func (t PreviewTarget) String() string {
	return fmt.Sprintf("%s#%d@%s", t.DocumentID, t.Page, t.Scale)
}

// ObjectKey locates the stored image of t in the preview bucket.
func (t PreviewTarget) ObjectKey() string {
	return fmt.Sprintf("%s/%04d@%s", t.DocumentID, t.Page, t.Scale)
}
