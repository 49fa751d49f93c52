package token

import (
	"strings"
	"testing"
	"time"
)

func TestIssueVerifyRoundtrip(t *testing.T) {
	c := NewCodec("test-secret", 15*time.Minute, 24*time.Hour)

	tests := []struct {
		name string
		kind Kind
	}{
		{name: "access", kind: KindAccess},
		{name: "refresh", kind: KindRefresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed, err := c.Issue("a@x.com", "USER", tt.kind)
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}

			claims, err := c.Verify(signed)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if claims.Subject != "a@x.com" {
				t.Errorf("subject = %q, want %q", claims.Subject, "a@x.com")
			}
			if claims.Role != "USER" {
				t.Errorf("role = %q, want USER", claims.Role)
			}
			if claims.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", claims.Kind, tt.kind)
			}
		})
	}
}

func TestVerifyExpired(t *testing.T) {
	// 음수 TTL로 이미 만료된 토큰을 발급한다.
	c := NewCodec("test-secret", -1*time.Minute, -1*time.Minute)

	signed, err := c.Issue("a@x.com", "USER", KindAccess)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := c.Verify(signed); err != ErrInvalidToken {
		t.Fatalf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyTamperedSignature(t *testing.T) {
	c := NewCodec("test-secret", 15*time.Minute, 24*time.Hour)

	signed, err := c.Issue("a@x.com", "USER", KindAccess)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// 서명부의 각 문자를 하나씩 뒤집어도 검증은 절대 성공하면 안 된다.
	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token format: %q", signed)
	}
	sig := parts[2]
	for i := 0; i < len(sig); i++ {
		flipped := []byte(sig)
		if flipped[i] == 'A' {
			flipped[i] = 'B'
		} else {
			flipped[i] = 'A'
		}
		tampered := parts[0] + "." + parts[1] + "." + string(flipped)
		if tampered == signed {
			continue
		}
		if _, err := c.Verify(tampered); err == nil {
			t.Fatalf("Verify() accepted tampered signature at index %d", i)
		}
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issue := NewCodec("secret-a", 15*time.Minute, 24*time.Hour)
	verify := NewCodec("secret-b", 15*time.Minute, 24*time.Hour)

	signed, err := issue.Issue("a@x.com", "USER", KindAccess)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := verify.Verify(signed); err != ErrInvalidToken {
		t.Fatalf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	c := NewCodec("test-secret", 15*time.Minute, 24*time.Hour)
	if _, err := c.Verify("not-a-token"); err != ErrInvalidToken {
		t.Fatalf("Verify() error = %v, want ErrInvalidToken", err)
	}
}
