// Package domain defines the core domain models for roadmapd.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is a single exchange unit in a conversation transcript.
type Turn struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Idea holds the originating product idea. Callers may supply it as a plain
// string or as a structured JSON value; both forms round-trip through storage
// unchanged in meaning. The zero value is the empty placeholder used when a
// stored encoding cannot be decoded.
type Idea struct {
	raw json.RawMessage
}

// IdeaFromText builds an Idea from a plain text description.
func IdeaFromText(s string) Idea {
	b, _ := json.Marshal(s)
	return Idea{raw: b}
}

// IdeaFromJSON builds an Idea from raw JSON, which may be a string or a
// structured value. Whitespace is normalized so equality is semantic.
func IdeaFromJSON(raw json.RawMessage) (Idea, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Idea{}, nil
	}
	if !json.Valid(trimmed) {
		return Idea{}, fmt.Errorf("idea description is not valid JSON")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return Idea{}, fmt.Errorf("compact idea description: %w", err)
	}
	return Idea{raw: buf.Bytes()}, nil
}

// DecodeIdea decodes the textual storage encoding produced by Encoded.
func DecodeIdea(encoded string) (Idea, error) {
	if encoded == "" {
		return Idea{}, nil
	}
	return IdeaFromJSON(json.RawMessage(encoded))
}

// IsZero reports whether the idea is the empty placeholder.
func (i Idea) IsZero() bool { return len(i.raw) == 0 }

// Text returns the idea as prompt-ready text. A JSON string decodes to its
// value; structured values render as compact JSON.
func (i Idea) Text() string {
	if i.IsZero() {
		return ""
	}
	var s string
	if err := json.Unmarshal(i.raw, &s); err == nil {
		return s
	}
	return string(i.raw)
}

// Encoded returns the canonical textual encoding used for durable storage.
func (i Idea) Encoded() string { return string(i.raw) }

// Equal reports semantic equality of two ideas.
func (i Idea) Equal(o Idea) bool { return bytes.Equal(i.raw, o.raw) }

func (i Idea) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	return i.raw, nil
}

func (i *Idea) UnmarshalJSON(b []byte) error {
	v, err := IdeaFromJSON(b)
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// Roadmap is the partial result record filled in as the pipeline progresses.
// A nil field means the corresponding phase has not completed.
type Roadmap struct {
	InitialClarificationQuestions *string         `json:"initialClarificationQuestions"`
	MarketOverview                *string         `json:"marketOverview"`
	MarketOverviewGrounding       json.RawMessage `json:"marketOverviewGroundingMetadata,omitempty"`
	MVPEpics                      *string         `json:"mvpEpics"`
	TaskBreakdown                 *string         `json:"taskBreakdown"`
}

// Complete reports whether all four phases have produced a result. A complete
// roadmap is terminal for the pipeline.
func (r Roadmap) Complete() bool {
	return r.InitialClarificationQuestions != nil &&
		r.MarketOverview != nil &&
		r.MVPEpics != nil &&
		r.TaskBreakdown != nil
}

// RoadmapPatch names exactly the roadmap fields a caller may update. Nil
// fields are left untouched; non-nil fields replace the stored value.
type RoadmapPatch struct {
	InitialClarificationQuestions *string
	MarketOverview                *string
	MarketOverviewGrounding       *json.RawMessage
	MVPEpics                      *string
	TaskBreakdown                 *string
}

// Empty reports whether the patch would change nothing.
func (p RoadmapPatch) Empty() bool {
	return p.InitialClarificationQuestions == nil &&
		p.MarketOverview == nil &&
		p.MarketOverviewGrounding == nil &&
		p.MVPEpics == nil &&
		p.TaskBreakdown == nil
}

// Conversation is one end-to-end roadmap/chat session.
type Conversation struct {
	ID           string    `json:"conversation_id"`
	Idea         Idea      `json:"idea_description"`
	History      []Turn    `json:"history"`
	Roadmap      Roadmap   `json:"roadmap"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}
