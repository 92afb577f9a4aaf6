package auth

import "testing"

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("test-secret")
	tok, err := a.IssueJWT("user-1", "student")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Sub != "user-1" || claims.Role != "student" {
		t.Errorf("claims = %q/%q", claims.Sub, claims.Role)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tok, err := NewAuthService("secret-a").IssueJWT("user-1", "student")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewAuthService("secret-b").Parse(tok); err == nil {
		t.Fatal("token signed with another secret must not parse")
	}
}
