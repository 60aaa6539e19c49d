package password

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	if !Verify("correct horse battery staple", encoded) {
		t.Fatal("verify rejected the original password")
	}
	if Verify("wrong password", encoded) {
		t.Fatal("verify accepted a wrong password")
	}
}

func TestHashProducesUniqueSalts(t *testing.T) {
	first, err := Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := Hash("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestVerifyRejectsMalformedEncodings(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1$c2FsdA$aGFzaA",
	} {
		if Verify("secret", encoded) {
			t.Fatalf("verify accepted malformed encoding %q", encoded)
		}
	}
}
