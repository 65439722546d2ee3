package main

import (
	"path/filepath"
	"testing"

	"quicksend/pkg/qsclient"
)

func TestProfileRestoresIdentity(t *testing.T) {
	id, err := qsclient.GenerateIdentity()
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	path := filepath.Join(t.TempDir(), "nested", "profile.toml")
	if err := writeProfile(path, newProfile("http://relay", "alice", "u-1", "d-1", "laptop", id)); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := readProfile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	restored, err := p.Identity()
	if err != nil {
		t.Fatalf("identity: %v", err)
	}

	sealed, err := qsclient.Seal([]byte("hi"), map[string]string{"d-1": id.EncryptionPublicKey()})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	plain, err := restored.Open(qsclient.DeliveryRecord{IV: sealed.IV, Body: sealed.Body, Key: sealed.Keys["d-1"]})
	if err != nil || string(plain) != "hi" {
		t.Fatalf("open = %q, %v", plain, err)
	}
	if restored.SigningPublicKey() != id.SigningPublicKey() {
		t.Fatalf("signing key changed")
	}
}

func TestReadProfileRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := writeProfile(path, &Profile{Username: "alice"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := readProfile(path); err == nil {
		t.Fatalf("expected error for incomplete profile")
	}
}
