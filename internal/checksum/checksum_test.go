package checksum

import "testing"

func TestVerifySHA512MatchAccepts(t *testing.T) {
	err := Verify(
		Expected{SHA512: "ABCD"},
		Computed{SHA512: "abcd", SHA256: "ignored", SHA1: "ignored"},
	)
	if err != nil {
		t.Fatalf("expected accept on SHA-512 match, got %v", err)
	}
}

func TestVerifySHA512MismatchFailsHard(t *testing.T) {
	err := Verify(
		Expected{SHA512: "ABCD"},
		Computed{SHA512: "wxyz", SHA256: "match", SHA1: "match"},
	)
	var mismatch *ChecksumMismatch
	if !isMismatch(err, &mismatch) || mismatch.Algorithm != SHA512 {
		t.Fatalf("expected ChecksumMismatch(SHA-512), got %v", err)
	}
}

func TestVerifyFallsThroughWhenSHA512NotComputed(t *testing.T) {
	err := Verify(
		Expected{SHA512: "ABCD", SHA256: "EF01"},
		Computed{SHA256: "ef01"},
	)
	if err != nil {
		t.Fatalf("expected fall-through accept on SHA-256, got %v", err)
	}
}

func TestVerifySHA256MatchAccepts(t *testing.T) {
	err := Verify(Expected{SHA256: "EF01"}, Computed{SHA256: "ef01"})
	if err != nil {
		t.Fatalf("expected accept on SHA-256 match, got %v", err)
	}
}

func TestVerifySHA256MismatchFailsHard(t *testing.T) {
	err := Verify(Expected{SHA256: "EF01"}, Computed{SHA256: "nope"})
	var mismatch *ChecksumMismatch
	if !isMismatch(err, &mismatch) || mismatch.Algorithm != SHA256 {
		t.Fatalf("expected ChecksumMismatch(SHA-256), got %v", err)
	}
}

func TestVerifySHA1MatchIsCaseSensitive(t *testing.T) {
	if err := Verify(Expected{SHA1: "AbCd"}, Computed{SHA1: "AbCd"}); err != nil {
		t.Fatalf("expected accept on exact SHA-1 match, got %v", err)
	}
	err := Verify(Expected{SHA1: "AbCd"}, Computed{SHA1: "abcd"})
	var mismatch *ChecksumMismatch
	if !isMismatch(err, &mismatch) || mismatch.Algorithm != SHA1 {
		t.Fatalf("SHA-1 comparison must be case-sensitive, got %v", err)
	}
}

func TestVerifySHA1NotComputedFails(t *testing.T) {
	err := Verify(Expected{SHA1: "abcd"}, Computed{})
	if _, ok := err.(*ChecksumNotComputed); !ok {
		t.Fatalf("expected ChecksumNotComputed, got %v", err)
	}
}

func TestVerifyNoExpectedDigestIsUnverifiable(t *testing.T) {
	err := Verify(Expected{}, Computed{SHA1: "abcd", SHA256: "ef01", SHA512: "ab"})
	if _, ok := err.(*IntegrityUnverifiable); !ok {
		t.Fatalf("expected IntegrityUnverifiable, got %v", err)
	}
}

func isMismatch(err error, target **ChecksumMismatch) bool {
	m, ok := err.(*ChecksumMismatch)
	if ok {
		*target = m
	}
	return ok
}
