package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

func TestGenerateToken_CreateToken(t *testing.T) {
	tests := []struct {
		name           string
		byteLength     int
		expectedLength int
	}{
		{name: "zero uses default", byteLength: 0, expectedLength: DefaultTokenLength},
		{name: "negative uses default", byteLength: -10, expectedLength: DefaultTokenLength},
		{name: "16 bytes", byteLength: 16, expectedLength: 16},
		{name: "32 bytes", byteLength: 32, expectedLength: 32},
		{name: "64 bytes", byteLength: 64, expectedLength: 64},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Act
			token, err := generateToken(test.byteLength)

			// Assert
			if err != nil {
				t.Fatalf("generateToken() error = %v", err)
			}
			decoded, err := base64.RawURLEncoding.DecodeString(token)
			if err != nil {
				t.Fatalf("failed to decode token: %v", err)
			}
			if len(decoded) != test.expectedLength {
				t.Errorf("token length = %d bytes, want %d", len(decoded), test.expectedLength)
			}
			if strings.ContainsAny(token, "+/= ") {
				t.Errorf("token contains URL-unsafe characters: %q", token)
			}
		})
	}
}

func TestGenerateToken_Unique(t *testing.T) {
	tokens := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token, err := generateToken(DefaultTokenLength)
		if err != nil {
			t.Fatalf("generateToken() error = %v", err)
		}
		if tokens[token] {
			t.Fatalf("duplicate token generated: %q", token)
		}
		tokens[token] = true
	}
}

func TestGenerateHashedToken(t *testing.T) {
	// Act
	pair, err := GenerateHashedToken()

	// Assert
	if err != nil {
		t.Fatalf("GenerateHashedToken() error = %v", err)
	}
	if pair.Token == "" || pair.Hash == "" {
		t.Fatal("empty token or hash")
	}
	if pair.Hash != HashToken(pair.Token) {
		t.Error("Hash does not match HashToken(Token)")
	}
	// SHA-256 hex digest.
	if len(pair.Hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(pair.Hash))
	}
	if _, err := hex.DecodeString(pair.Hash); err != nil {
		t.Errorf("hash is not hex: %v", err)
	}
}

func TestGenerateHashedToken_CustomLength(t *testing.T) {
	pair, err := GenerateHashedToken(48)
	if err != nil {
		t.Fatalf("GenerateHashedToken(48) error = %v", err)
	}
	decoded, err := base64.RawURLEncoding.DecodeString(pair.Token)
	if err != nil {
		t.Fatalf("failed to decode token: %v", err)
	}
	if len(decoded) != 48 {
		t.Errorf("token length = %d bytes, want 48", len(decoded))
	}

	if _, err := GenerateHashedToken(16, 32); err != ErrTooManyArgs {
		t.Errorf("error = %v, want ErrTooManyArgs", err)
	}
}

func TestVerifyToken(t *testing.T) {
	pair, err := GenerateHashedToken()
	if err != nil {
		t.Fatalf("GenerateHashedToken() error = %v", err)
	}

	tests := []struct {
		name    string
		token   string
		hash    string
		want    bool
		wantErr bool
	}{
		{name: "matching pair", token: pair.Token, hash: pair.Hash, want: true},
		{name: "wrong token", token: "wrong", hash: pair.Hash, want: false},
		{name: "empty token", token: "", hash: pair.Hash, wantErr: true},
		{name: "empty hash", token: pair.Token, hash: "", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := VerifyToken(test.token, test.hash)
			if (err != nil) != test.wantErr {
				t.Fatalf("VerifyToken() error = %v, wantErr %v", err, test.wantErr)
			}
			if !test.wantErr && got != test.want {
				t.Errorf("VerifyToken() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestHashToken_Deterministic(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Error("HashToken is not deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Error("different inputs produced the same hash")
	}
}
