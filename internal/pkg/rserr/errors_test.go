package rserr

import "testing"

func TestImmutable(t *testing.T) {
	e := New(400, "INVALID_REQUEST", "invalid request: some or all request parameters are invalid")
	changedE := e.Msg("%s", "changed")
	if e.Message == "changed" {
		t.Errorf("Expected immutable error with message not equal to 'changed', got '%s'", e.Message)
	}
	if changedE.Message != "changed" {
		t.Errorf("Expected immutable error with message equal to 'changed', got '%s'", changedE.Message)
	}
}

func TestInsufficientData(t *testing.T) {
	e := NewInsufficientData(10, 3)
	if !IsInsufficientData(e) {
		t.Error("Expected IsInsufficientData to be true")
	}
	if IsInsufficientData(ErrInvalidReq) {
		t.Error("Expected IsInsufficientData to be false for ErrInvalidReq")
	}
	if (*e.Extras)["available"] != 3 {
		t.Errorf("Expected available extra to be 3, got %v", (*e.Extras)["available"])
	}
}
