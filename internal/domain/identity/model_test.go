package identity

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGender(t *testing.T) {
	tests := []struct {
		g     Gender
		valid bool
		code  int
	}{
		{GenderFemale, true, 0},
		{GenderMale, true, 1},
		{GenderOther, true, 2},
		{Gender("x"), false, 0},
	}
	for _, tt := range tests {
		if tt.g.Valid() != tt.valid {
			t.Errorf("%q.Valid() = %v", tt.g, tt.g.Valid())
		}
		if tt.valid && tt.g.Code() != tt.code {
			t.Errorf("%q.Code() = %d, want %d", tt.g, tt.g.Code(), tt.code)
		}
	}
}

func TestPatient_JSONHidesSecrets(t *testing.T) {
	hash := "$2a$04$digest"
	lookup := "abcdef"
	p := Patient{Email: "u@example.com", PasswordHash: "$2a$04$pw", NationalIDHash: &hash, NationalIDLookup: &lookup}

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, secret := range []string{"$2a$04$pw", hash, lookup, "password", "national_id"} {
		if strings.Contains(s, secret) {
			t.Errorf("serialized patient leaks %q: %s", secret, s)
		}
	}
}
