package message

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
	"github.com/chitter-chat/chitter-server/internal/attachment"
)

// Facet kinds.
const (
	FacetMention = "mention"
	FacetLink    = "link"
	FacetCode    = "code"
)

// Facet annotates the half-open range [Start, End) of the message text.
type Facet struct {
	Type  string  `json:"type"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Value *string `json:"value,omitempty"`
}

// MessageEmbed references another message in the same room.
type MessageEmbed struct {
	MessageID string `json:"messageId"`
	RoomID    string `json:"roomId"`
}

// ExternalEmbed is a link preview for an external resource.
type ExternalEmbed struct {
	URI         string  `json:"uri"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Thumb       *string `json:"thumb,omitempty"`
}

// Embed is a tagged union of MessageEmbed and ExternalEmbed. Exactly one arm
// is non-nil. It marshals flat: the wire shape is the active arm's own object,
// with no wrapper key.
type Embed struct {
	Message  *MessageEmbed
	External *ExternalEmbed
}

// MarshalJSON writes the active union arm directly.
func (e Embed) MarshalJSON() ([]byte, error) {
	if e.Message != nil {
		return json.Marshal(e.Message)
	}
	return json.Marshal(e.External)
}

// UnmarshalJSON picks the union arm by key shape: the presence of "messageId"
// selects MessageEmbed, anything else is read as ExternalEmbed.
func (e *Embed) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if _, ok := probe["messageId"]; ok {
		var m MessageEmbed
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		e.Message = &m
		e.External = nil
		return nil
	}
	var x ExternalEmbed
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	e.External = &x
	e.Message = nil
	return nil
}

// Content is the canonical validated message body. AttachmentIDs is the
// client-supplied input; Attachments is the resolved records attached on
// create and edit.
type Content struct {
	Text          string                  `json:"text"`
	Facets        []Facet                 `json:"facets"`
	Embed         *Embed                  `json:"embed,omitempty"`
	AttachmentIDs []string                `json:"attachmentIds,omitempty"`
	Attachments   []attachment.Attachment `json:"attachments,omitempty"`
}

// Sanitize validates untrusted decoded JSON into canonical Content. It is
// pure and deterministic, never touches storage, and is idempotent: feeding
// its output back (re-decoded) yields the same result. Unknown top-level keys
// are dropped; malformed facet elements and non-UUID attachment ids are
// skipped during coercion, while a coerced facet or a recognised embed that
// fails validation rejects the whole content.
func Sanitize(input any) (*Content, error) {
	m, ok := input.(map[string]any)
	if !ok {
		return nil, apierrors.ErrInvalidContentStructure
	}

	text, _ := m["text"].(string)
	if text == "" {
		return nil, apierrors.ErrInvalidTextContent
	}
	textLen := utf8.RuneCountInString(text)

	facets, err := sanitizeFacets(m["facets"], textLen)
	if err != nil {
		return nil, err
	}

	embed, err := sanitizeEmbed(m["embed"])
	if err != nil {
		return nil, err
	}

	return &Content{
		Text:          text,
		Facets:        facets,
		Embed:         embed,
		AttachmentIDs: sanitizeAttachmentIDs(m["attachmentIds"]),
	}, nil
}

// sanitizeFacets coerces each mapping element of raw into a facet, keeping
// only string and number fields, then validates the result. Non-mapping
// elements are skipped; a coerced facet that fails validation is an error.
func sanitizeFacets(raw any, textLen int) ([]Facet, error) {
	facets := []Facet{}
	list, ok := raw.([]any)
	if !ok {
		return facets, nil
	}

	for _, el := range list {
		fm, ok := el.(map[string]any)
		if !ok {
			continue
		}

		typ, ok := fm["type"].(string)
		if !ok {
			return nil, apierrors.ErrInvalidFacet
		}
		if typ != FacetMention && typ != FacetLink && typ != FacetCode {
			return nil, apierrors.ErrInvalidFacet
		}

		start, ok := asInt(fm["start"])
		if !ok {
			return nil, apierrors.ErrInvalidFacet
		}
		end, ok := asInt(fm["end"])
		if !ok {
			return nil, apierrors.ErrInvalidFacet
		}
		if start < 0 || start >= end || end > textLen {
			return nil, apierrors.ErrInvalidFacet
		}

		facet := Facet{Type: typ, Start: start, End: end}
		if rawValue, present := fm["value"]; present && rawValue != nil {
			value, ok := rawValue.(string)
			if !ok {
				return nil, apierrors.ErrInvalidFacet
			}
			facet.Value = &value
		}
		facets = append(facets, facet)
	}
	return facets, nil
}

// sanitizeEmbed builds the embed union from a mapping. A mapping with both
// messageId and roomId must be exactly a MessageEmbed (two UUID strings, no
// other keys); a mapping with uri, title, and description must be exactly an
// ExternalEmbed (three strings plus an optional thumb). Non-mapping values
// are treated as absent.
func sanitizeEmbed(raw any) (*Embed, error) {
	em, ok := raw.(map[string]any)
	if !ok {
		return nil, nil
	}

	_, hasMessageID := em["messageId"]
	_, hasRoomID := em["roomId"]
	if hasMessageID && hasRoomID {
		if len(em) != 2 {
			return nil, apierrors.ErrInvalidEmbed
		}
		messageID, ok := asUUIDString(em["messageId"])
		if !ok {
			return nil, apierrors.ErrInvalidEmbed
		}
		roomID, ok := asUUIDString(em["roomId"])
		if !ok {
			return nil, apierrors.ErrInvalidEmbed
		}
		return &Embed{Message: &MessageEmbed{MessageID: messageID, RoomID: roomID}}, nil
	}

	_, hasURI := em["uri"]
	_, hasTitle := em["title"]
	_, hasDescription := em["description"]
	if hasURI && hasTitle && hasDescription {
		external := ExternalEmbed{}
		var ok bool
		if external.URI, ok = em["uri"].(string); !ok {
			return nil, apierrors.ErrInvalidEmbed
		}
		if external.Title, ok = em["title"].(string); !ok {
			return nil, apierrors.ErrInvalidEmbed
		}
		if external.Description, ok = em["description"].(string); !ok {
			return nil, apierrors.ErrInvalidEmbed
		}
		allowed := 3
		if rawThumb, present := em["thumb"]; present {
			thumb, ok := rawThumb.(string)
			if !ok {
				return nil, apierrors.ErrInvalidEmbed
			}
			external.Thumb = &thumb
			allowed = 4
		}
		if len(em) != allowed {
			return nil, apierrors.ErrInvalidEmbed
		}
		return &Embed{External: &external}, nil
	}

	return nil, apierrors.ErrInvalidEmbed
}

// sanitizeAttachmentIDs keeps only UUID-formatted strings.
func sanitizeAttachmentIDs(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var ids []string
	for _, el := range list {
		s, ok := asUUIDString(el)
		if !ok {
			continue
		}
		ids = append(ids, s)
	}
	return ids
}

// asInt accepts the numeric types that decoded JSON and canonical content
// produce.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

// asUUIDString reports whether v is a string in UUID form, returning it
// re-encoded canonically.
func asUUIDString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
