package signing

import (
	"errors"
	"testing"
	"time"
)

func TestSigner(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	sig := s.Sign("book123", 1700000000)
	if len(sig) == 0 {
		t.Fatalf("expected signature")
	}
	if !s.Validate("book123", "1700000000", sig) {
		t.Fatalf("expected signature to validate")
	}
	if s.Validate("wrong", "1700000000", sig) {
		t.Fatalf("expected validation to fail for wrong book id")
	}
	if s.Validate("book123", "42", sig) {
		t.Fatalf("expected validation to fail for wrong expiry")
	}
	if NewSigner([]byte("other")).Validate("book123", "1700000000", sig) {
		t.Fatalf("expected validation to fail for another secret")
	}
}

func TestQueryVerify(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	now := time.Unix(1700000000, 0)
	q, expires := s.Query("book123", now, 5*time.Minute)
	if !expires.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("expires = %s", expires)
	}

	tests := []struct {
		name   string
		mutate func()
		at     time.Time
		want   error
	}{
		{name: "valid", at: now.Add(time.Minute)},
		{name: "at expiry", at: now.Add(5 * time.Minute)},
		{name: "expired", at: now.Add(6 * time.Minute), want: ErrExpired},
		{name: "tampered book", mutate: func() { q.Set("book", "other") }, at: now, want: ErrInvalidSignature},
		{name: "missing signature", mutate: func() { q.Del("signature") }, at: now, want: ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ = s.Query("book123", now, 5*time.Minute)
			if tt.mutate != nil {
				tt.mutate()
			}
			bookID, err := s.Verify(q, tt.at)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tt.want == nil && bookID != "book123" {
				t.Errorf("bookID = %q", bookID)
			}
		})
	}
}
