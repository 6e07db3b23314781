package gcp

import (
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

func TestInferEncoding(t *testing.T) {
	cases := map[string]speechpb.RecognitionConfig_AudioEncoding{
		"audio/webm;codecs=opus": speechpb.RecognitionConfig_WEBM_OPUS,
		"audio/ogg":              speechpb.RecognitionConfig_OGG_OPUS,
		"audio/wav":              speechpb.RecognitionConfig_LINEAR16,
		"audio/flac":             speechpb.RecognitionConfig_FLAC,
		"audio/mpeg":             speechpb.RecognitionConfig_MP3,
		"":                       speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
	}
	for mime, want := range cases {
		if got := inferEncoding(mime); got != want {
			t.Fatalf("%q: expected %v, got %v", mime, want, got)
		}
	}
}

func TestJoinTranscripts(t *testing.T) {
	resp := &speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " Peter preached "}, {Transcript: "ignored"}}},
			{},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "at Pentecost."}}},
		},
	}
	if got := joinTranscripts(resp); got != "Peter preached at Pentecost." {
		t.Fatalf("unexpected transcript %q", got)
	}
}
