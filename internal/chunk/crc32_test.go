package chunk

import "testing"

func TestCRC32Vector(t *testing.T) {
	got := CRC32([]byte("123456789"))
	const want = 0xCBF43926
	if got != want {
		t.Fatalf("CRC32(%q) = 0x%08X, want 0x%08X", "123456789", got, want)
	}
}

func TestVerifyCRC32(t *testing.T) {
	data := []byte("the quick brown fox")
	sum := CRC32(data)
	if !VerifyCRC32(data, sum) {
		t.Fatal("expected checksum to verify")
	}
	if VerifyCRC32(data, sum^1) {
		t.Fatal("expected mismatched checksum to fail verification")
	}
}
