package message

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/chitter-chat/chitter-server/internal/apierrors"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("decode input: %v", err)
	}
	return v
}

func TestSanitize_Text(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   any
		wantErr error
	}{
		{"not a mapping", "hello", apierrors.ErrInvalidContentStructure},
		{"nil input", nil, apierrors.ErrInvalidContentStructure},
		{"missing text", decode(t, `{}`), apierrors.ErrInvalidTextContent},
		{"empty text", decode(t, `{"text":""}`), apierrors.ErrInvalidTextContent},
		{"non-string text", decode(t, `{"text":42}`), apierrors.ErrInvalidTextContent},
		{"plain text", decode(t, `{"text":"hello"}`), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Sanitize(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Sanitize() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got.Text != "hello" {
				t.Errorf("Text = %q, want %q", got.Text, "hello")
			}
		})
	}
}

func TestSanitize_DropsUnknownKeys(t *testing.T) {
	t.Parallel()

	got, err := Sanitize(decode(t, `{"text":"hi","hacker":"payload","admin":true}`))
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	want := &Content{Text: "hi", Facets: []Facet{}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize() = %+v, want %+v", got, want)
	}
}

func TestSanitize_Facets(t *testing.T) {
	t.Parallel()

	// "héllo" is 5 runes; facet bounds count runes, not bytes.
	tests := []struct {
		name    string
		raw     string
		want    []Facet
		wantErr error
	}{
		{
			name: "valid facet spanning whole text",
			raw:  `{"text":"héllo","facets":[{"type":"link","start":0,"end":5}]}`,
			want: []Facet{{Type: "link", Start: 0, End: 5}},
		},
		{
			name: "end equals rune length is accepted",
			raw:  `{"text":"hi","facets":[{"type":"code","start":1,"end":2}]}`,
			want: []Facet{{Type: "code", Start: 1, End: 2}},
		},
		{
			name: "non-mapping elements are skipped",
			raw:  `{"text":"hi","facets":["junk",7,{"type":"mention","start":0,"end":1}]}`,
			want: []Facet{{Type: "mention", Start: 0, End: 1}},
		},
		{
			name: "facets not a list yields empty",
			raw:  `{"text":"hi","facets":"nope"}`,
			want: []Facet{},
		},
		{
			name:    "unknown type rejects",
			raw:     `{"text":"hi","facets":[{"type":"bold","start":0,"end":1}]}`,
			wantErr: apierrors.ErrInvalidFacet,
		},
		{
			name:    "start equals end rejects",
			raw:     `{"text":"hi","facets":[{"type":"link","start":1,"end":1}]}`,
			wantErr: apierrors.ErrInvalidFacet,
		},
		{
			name:    "negative start rejects",
			raw:     `{"text":"hi","facets":[{"type":"link","start":-1,"end":1}]}`,
			wantErr: apierrors.ErrInvalidFacet,
		},
		{
			name:    "end past rune length rejects",
			raw:     `{"text":"héllo","facets":[{"type":"link","start":0,"end":6}]}`,
			wantErr: apierrors.ErrInvalidFacet,
		},
		{
			name:    "missing bounds reject",
			raw:     `{"text":"hi","facets":[{"type":"link"}]}`,
			wantErr: apierrors.ErrInvalidFacet,
		},
		{
			name:    "non-string value rejects",
			raw:     `{"text":"hi","facets":[{"type":"mention","start":0,"end":1,"value":9}]}`,
			wantErr: apierrors.ErrInvalidFacet,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Sanitize(decode(t, tt.raw))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Sanitize() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if !reflect.DeepEqual(got.Facets, tt.want) {
				t.Errorf("Facets = %+v, want %+v", got.Facets, tt.want)
			}
		})
	}
}

func TestSanitize_Embed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantMsg  bool
		wantExt  bool
		wantNone bool
		wantErr  error
	}{
		{
			name:    "message embed",
			raw:     `{"text":"hi","embed":{"messageId":"0b0e7759-6138-4f5c-a237-a27d9ad5e003","roomId":"2a9b3f40-31ab-40b1-bb6e-62c4b8a614b1"}}`,
			wantMsg: true,
		},
		{
			name:    "external embed",
			raw:     `{"text":"hi","embed":{"uri":"https://example.com","title":"Example","description":"An example"}}`,
			wantExt: true,
		},
		{
			name:    "external embed with thumb",
			raw:     `{"text":"hi","embed":{"uri":"https://example.com","title":"t","description":"d","thumb":"https://example.com/t.png"}}`,
			wantExt: true,
		},
		{
			name:     "non-mapping embed is ignored",
			raw:      `{"text":"hi","embed":"junk"}`,
			wantNone: true,
		},
		{
			name:     "absent embed",
			raw:      `{"text":"hi"}`,
			wantNone: true,
		},
		{
			name:    "message embed with extra key rejects",
			raw:     `{"text":"hi","embed":{"messageId":"0b0e7759-6138-4f5c-a237-a27d9ad5e003","roomId":"2a9b3f40-31ab-40b1-bb6e-62c4b8a614b1","x":1}}`,
			wantErr: apierrors.ErrInvalidEmbed,
		},
		{
			name:    "message embed with non-uuid id rejects",
			raw:     `{"text":"hi","embed":{"messageId":"42","roomId":"2a9b3f40-31ab-40b1-bb6e-62c4b8a614b1"}}`,
			wantErr: apierrors.ErrInvalidEmbed,
		},
		{
			name:    "external embed with extra key rejects",
			raw:     `{"text":"hi","embed":{"uri":"u","title":"t","description":"d","evil":"x"}}`,
			wantErr: apierrors.ErrInvalidEmbed,
		},
		{
			name:    "unrecognised mapping rejects",
			raw:     `{"text":"hi","embed":{"foo":"bar"}}`,
			wantErr: apierrors.ErrInvalidEmbed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Sanitize(decode(t, tt.raw))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Sanitize() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			switch {
			case tt.wantNone:
				if got.Embed != nil {
					t.Errorf("Embed = %+v, want nil", got.Embed)
				}
			case tt.wantMsg:
				if got.Embed == nil || got.Embed.Message == nil || got.Embed.External != nil {
					t.Errorf("Embed = %+v, want message arm", got.Embed)
				}
			case tt.wantExt:
				if got.Embed == nil || got.Embed.External == nil || got.Embed.Message != nil {
					t.Errorf("Embed = %+v, want external arm", got.Embed)
				}
			}
		})
	}
}

func TestSanitize_AttachmentIDs(t *testing.T) {
	t.Parallel()

	got, err := Sanitize(decode(t,
		`{"text":"hi","attachmentIds":["0b0e7759-6138-4f5c-a237-a27d9ad5e003","nope",17,"2a9b3f40-31ab-40b1-bb6e-62c4b8a614b1"]}`))
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	want := []string{"0b0e7759-6138-4f5c-a237-a27d9ad5e003", "2a9b3f40-31ab-40b1-bb6e-62c4b8a614b1"}
	if !reflect.DeepEqual(got.AttachmentIDs, want) {
		t.Errorf("AttachmentIDs = %v, want %v", got.AttachmentIDs, want)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	t.Parallel()

	raw := `{"text":"héllo","facets":[{"type":"mention","start":0,"end":2,"value":"alice"}],` +
		`"embed":{"uri":"https://example.com","title":"t","description":"d"},` +
		`"attachmentIds":["0b0e7759-6138-4f5c-a237-a27d9ad5e003"]}`

	first, err := Sanitize(decode(t, raw))
	if err != nil {
		t.Fatalf("first Sanitize() error = %v", err)
	}

	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := Sanitize(decode(t, string(encoded)))
	if err != nil {
		t.Fatalf("second Sanitize() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Sanitize is not idempotent:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestEmbed_MarshalsFlat(t *testing.T) {
	t.Parallel()

	e := Embed{External: &ExternalEmbed{URI: "u", Title: "t", Description: "d"}}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, wrapped := m["External"]; wrapped {
		t.Errorf("embed marshalled with wrapper key: %s", data)
	}
	if m["uri"] != "u" {
		t.Errorf("uri = %v, want %q", m["uri"], "u")
	}
}
