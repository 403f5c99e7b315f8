// internal/models/citation.go
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// CitationType tags the legal authority a citation refers to.
type CitationType string

const (
	CitationTypeCase       CitationType = "case"
	CitationTypeStatute    CitationType = "statute"
	CitationTypeRegulation CitationType = "regulation"
	CitationTypeRule       CitationType = "rule"
	CitationTypeSecondary  CitationType = "secondary"
)

// Citation is one identified citation instance within a document.
// ID is stable across versions of the same document lineage.
type Citation struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Type       CitationType      `json:"type"`
	Components map[string]string `json:"components,omitempty"`
	BlockID    string            `json:"blockId,omitempty"`
	Tier1      json.RawMessage   `json:"tier_1,omitempty"`
	Tier2      *Tier2Result      `json:"tier_2,omitempty"`
	Tier3      *Tier3Result      `json:"tier_3,omitempty"`
}

// UnmarshalJSON accepts the legacy "validation" key as the Tier 2 slot.
func (c *Citation) UnmarshalJSON(data []byte) error {
	type plain Citation
	aux := struct {
		*plain
		Validation *Tier2Result `json:"validation,omitempty"`
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.Tier2 == nil && aux.Validation != nil {
		c.Tier2 = aux.Validation
	}
	return nil
}

// CitationContext is the text window around a citation handed to the panels.
type CitationContext struct {
	Preceding string `json:"preceding,omitempty"`
	Following string `json:"following,omitempty"`
}

// CitationPatch is a partial update of one citation's tier slots.
// Nil fields are left untouched.
type CitationPatch struct {
	Tier1 json.RawMessage `json:"tier_1,omitempty"`
	Tier2 *Tier2Result    `json:"tier_2,omitempty"`
	Tier3 *Tier3Result    `json:"tier_3,omitempty"`
}

// Apply merges the patch into c.
func (p CitationPatch) Apply(c *Citation) {
	if len(p.Tier1) > 0 {
		c.Tier1 = p.Tier1
	}
	if p.Tier2 != nil {
		c.Tier2 = p.Tier2
	}
	if p.Tier3 != nil {
		c.Tier3 = p.Tier3
	}
}

// ContentBlock is one ordered block of extracted document text.
type ContentBlock struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// CitationDocument is one version of a source file's extracted citations.
type CitationDocument struct {
	ID           string                 `json:"id"`
	SourceFileID string                 `json:"sourceFileId"`
	Version      int                    `json:"version"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Blocks       []ContentBlock         `json:"content"`
	Citations    []Citation             `json:"citations"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// CitationAt returns the citation at index, falling back to a lookup by id when
// the index is out of range or now holds a different citation.
func (d *CitationDocument) CitationAt(index int, id string) (*Citation, bool) {
	if index >= 0 && index < len(d.Citations) {
		c := &d.Citations[index]
		if c.ID != "" && (id == "" || c.ID == id) {
			return c, true
		}
	}
	if id == "" {
		return nil, false
	}
	return d.CitationByID(id)
}

// CitationByID finds a citation by its stable id.
func (d *CitationDocument) CitationByID(id string) (*Citation, bool) {
	for i := range d.Citations {
		if d.Citations[i].ID == id {
			return &d.Citations[i], true
		}
	}
	return nil, false
}

// ContextFor builds the preceding/following text window around the block that
// holds the citation. window caps each side in characters; zero means no cap.
func (d *CitationDocument) ContextFor(c *Citation, window int) CitationContext {
	at := -1
	for i, b := range d.Blocks {
		if b.ID == c.BlockID {
			at = i
			break
		}
	}
	if at < 0 {
		// Fall back to locating the citation text itself.
		for i, b := range d.Blocks {
			if c.Text != "" && strings.Contains(b.Text, c.Text) {
				at = i
				break
			}
		}
	}
	if at < 0 {
		return CitationContext{}
	}

	block := d.Blocks[at].Text
	pre, post := block, ""
	if idx := strings.Index(block, c.Text); idx >= 0 && c.Text != "" {
		pre = block[:idx]
		post = block[idx+len(c.Text):]
	}
	if at > 0 {
		pre = d.Blocks[at-1].Text + "\n" + pre
	}
	if at+1 < len(d.Blocks) {
		post = post + "\n" + d.Blocks[at+1].Text
	}

	return CitationContext{
		Preceding: tail(strings.TrimSpace(pre), window),
		Following: head(strings.TrimSpace(post), window),
	}
}

func head(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}

func tail(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
