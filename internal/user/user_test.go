package user

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRoleValid(t *testing.T) {
	t.Parallel()

	if !RoleAdmin.Valid() || !RoleParticipant.Valid() {
		t.Error("known roles reported invalid")
	}
	for _, r := range []Role{"", "owner", "Admin"} {
		if r.Valid() {
			t.Errorf("Role(%q).Valid() = true", r)
		}
	}
}

func TestNewToken(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tok := NewToken()
		if len(tok) != 32 || strings.ToLower(tok) != tok {
			t.Fatalf("NewToken() = %q, want 32 lower-case hex characters", tok)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("NewToken() repeated %q", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestPublicStripsToken(t *testing.T) {
	t.Parallel()

	u := User{DisplayName: "alice", Token: NewToken()}
	pub := u.Public()
	if pub.Token != "" {
		t.Errorf("Public().Token = %q, want empty", pub.Token)
	}
	if u.Token == "" {
		t.Error("Public() mutated the receiver")
	}

	data, err := json.Marshal(pub)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "token") {
		t.Errorf("public user still serializes a token field: %s", data)
	}
}
