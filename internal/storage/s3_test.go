package storage

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	plain := []byte("%PDF-1.4 pretend document body")

	enc, err := encrypt(plain, "hunter2")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(enc, plain) {
		t.Fatal("ciphertext contains plaintext")
	}
	if string(enc[:len(gcmMagic)]) != gcmMagic {
		t.Errorf("container magic = %q, want %q", enc[:len(gcmMagic)], gcmMagic)
	}

	dec, err := Decrypt(enc, "hunter2")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(dec, plain) {
		t.Errorf("roundtrip mismatch: %q", dec)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	enc, err := encrypt([]byte("secret"), "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(enc, "wrong"); err == nil {
		t.Fatal("Decrypt with wrong passphrase expected error")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     nil,
		"not magic": []byte("this is definitely not a container"),
		"truncated": []byte(gcmMagic + "shortsalt"),
	} {
		if _, err := Decrypt(data, "pw"); err == nil {
			t.Errorf("Decrypt(%s) expected error", name)
		}
	}
}

func TestEncryptSaltsAreUnique(t *testing.T) {
	a, err := encrypt([]byte("same input"), "pw")
	if err != nil {
		t.Fatal(err)
	}
	b, err := encrypt([]byte("same input"), "pw")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same input produced identical output")
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://results/composed/job1/out.pdf", "results", "composed/job1/out.pdf", false},
		{"s3://b/k", "b", "k", false},
		{"s3://bucket-only", "", "", true},
		{"s3://bucket/", "", "", true},
		{"https://example.com/x", "", "", true},
		{"", "", "", true},
	}
	for _, tc := range tests {
		bucket, key, err := ParseURL(tc.url)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseURL(%q) err = %v, wantErr %v", tc.url, err, tc.wantErr)
			continue
		}
		if bucket != tc.bucket || key != tc.key {
			t.Errorf("ParseURL(%q) = %q/%q, want %q/%q", tc.url, bucket, key, tc.bucket, tc.key)
		}
	}
}
