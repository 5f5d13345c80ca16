package stt

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

// GoogleSpeech transcribes Telegram voice notes, which arrive as OGG/Opus
// at 48 kHz.
type GoogleSpeech struct {
	c *speech.Client

	Model string
	// AlternativeLanguages are tried alongside the requested language.
	AlternativeLanguages []string
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{
		c:                    c,
		Model:                "latest_short",
		AlternativeLanguages: []string{"es-MX", "es-US"},
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, language string) (string, float64, error) {
	if language == "" {
		language = "es-ES"
	}
	var alts []string
	for _, l := range g.AlternativeLanguages {
		if !strings.EqualFold(l, language) {
			alts = append(alts, l)
		}
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_OGG_OPUS,
			SampleRateHertz:            48000,
			AudioChannelCount:          1,
			LanguageCode:               language,
			AlternativeLanguageCodes:   alts,
			Model:                      g.Model,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", 0, err
	}
	return joinResults(resp.GetResults())
}

// joinResults concatenates the top alternative of each result, which cover
// consecutive stretches of the clip. The confidence is the lowest one seen.
func joinResults(results []*speechpb.SpeechRecognitionResult) (string, float64, error) {
	var parts []string
	conf := 1.0
	for _, r := range results {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		top := r.GetAlternatives()[0]
		if t := strings.TrimSpace(top.GetTranscript()); t != "" {
			parts = append(parts, t)
			if c := float64(top.GetConfidence()); c < conf {
				conf = c
			}
		}
	}
	if len(parts) == 0 {
		return "", 0, ErrNoSpeech
	}
	return strings.Join(parts, " "), conf, nil
}
