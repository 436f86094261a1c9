package whisper

import "strings"

// InvocationPayload is the event sent to the remote whisper function.
// The diarization fields are only serialized when Diarization is set.
type InvocationPayload struct {
	Name           string `json:"name"`
	AudioURL       string `json:"audio_url"`
	LanguageCode   string `json:"language_code"`
	CallbackMethod string `json:"callback_method"`
	CallbackURL    string `json:"callback_url"`
	*Diarization
}

// Diarization requests speaker separation.
type Diarization struct {
	EnableSpeakerIdentification bool `json:"enable_speaker_identification"`
	MaxSpeakerCount             int  `json:"max_speaker_count"`
}

// BaseLanguage returns the part of a language tag before the first '-',
// e.g. "en-US" -> "en".
func BaseLanguage(code string) string {
	base, _, _ := strings.Cut(code, "-")
	return base
}
