package contact

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"(555) 123-4567", "+15551234567"},
		{"+15551234567", "+15551234567"},
		{"555.123.4567", "+15551234567"},
		{"+44 20 7946 0958", "+442079460958"},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.in); got != c.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	once := NormalizePhone("(555) 123-4567")
	if twice := NormalizePhone(once); twice != once {
		t.Fatalf("normalization not idempotent: %q -> %q", once, twice)
	}
}

func TestParseCallStatus(t *testing.T) {
	for _, s := range []string{"pending", "calling", "completed", "failed", "opted_out"} {
		got, err := ParseCallStatus(s)
		if err != nil {
			t.Fatalf("ParseCallStatus(%q): %v", s, err)
		}
		if got.String() != s {
			t.Fatalf("ParseCallStatus(%q) = %q", s, got)
		}
	}
}

func TestParseCallStatus_RejectsUnknown(t *testing.T) {
	if _, err := ParseCallStatus("on_hold"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
	if _, err := ParseCallStatus(""); err == nil {
		t.Fatalf("expected error for empty status")
	}
}
