package stt

import (
	"errors"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

func result(text string, conf float32) *speechpb.SpeechRecognitionResult {
	return &speechpb.SpeechRecognitionResult{
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text, Confidence: conf}},
	}
}

func TestJoinResults(t *testing.T) {
	text, conf, err := joinResults([]*speechpb.SpeechRecognitionResult{
		result("tengo 30 años", 0.9),
		{},
		result(" y peso 80 ", 0.75),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "tengo 30 años y peso 80" {
		t.Errorf("unexpected text %q", text)
	}
	if conf != float64(float32(0.75)) {
		t.Errorf("expected lowest confidence, got %v", conf)
	}
}

func TestJoinResultsEmpty(t *testing.T) {
	if _, _, err := joinResults([]*speechpb.SpeechRecognitionResult{result("  ", 0.5)}); !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("expected ErrNoSpeech, got %v", err)
	}
}
