package gateway

import (
	"context"
	"errors"
	"testing"
)

type stubText struct{}

func (stubText) CompleteText(context.Context, []Exchange, string) (string, error) {
	return "ok", nil
}

func TestCombineNilBackendsReturnEmpty(t *testing.T) {
	gw := Combine(stubText{}, nil, nil)
	ctx := context.Background()

	if _, err := gw.GenerateImage(ctx, "p", "1:1"); !IsEmpty(err) {
		t.Fatalf("expected empty result, got %v", err)
	}
	if _, err := gw.SynthesizeSpeech(ctx, "p", "Kore"); !IsEmpty(err) {
		t.Fatalf("expected empty result, got %v", err)
	}
	if got, err := gw.CompleteText(ctx, nil, ""); err != nil || got != "ok" {
		t.Fatalf("CompleteText = %q, %v", got, err)
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("503 unavailable")
	err := Wrap("gemini", OpCompleteText, base)

	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if gwErr.Op != OpCompleteText || gwErr.Provider != "gemini" {
		t.Fatalf("unexpected error fields: %+v", gwErr)
	}
	if !errors.Is(err, base) {
		t.Fatal("wrapped error lost its cause")
	}
	if Wrap("gemini", OpGenerateImage, ErrEmptyResult) != ErrEmptyResult {
		t.Fatal("empty result must pass through unwrapped")
	}
	if Wrap("gemini", OpGenerateImage, nil) != nil {
		t.Fatal("nil must stay nil")
	}
	if again := Wrap("ark", OpCompleteText, err); again != err {
		t.Fatal("already wrapped error must not be wrapped twice")
	}
}
