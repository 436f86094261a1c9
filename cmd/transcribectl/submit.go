package main

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"
)

var (
	languageCode    string
	maxSpeakerCount int
	provider        string
)

func init() {
	submitCmd.Flags().StringVarP(&languageCode, "language", "l", "", "BCP-47 language code, service default when empty")
	submitCmd.Flags().IntVar(&maxSpeakerCount, "speakers", 0, "maximum speaker count; enables diarization when set")
	submitCmd.Flags().StringVarP(&provider, "provider", "p", "", "transcription provider, service default when empty")
}

type submitRequest struct {
	AudioURL        string `json:"audio_url"`
	LanguageCode    string `json:"language_code,omitempty"`
	MaxSpeakerCount *int   `json:"max_speaker_count,omitempty"`
	Provider        string `json:"provider,omitempty"`
}

func newSubmitRequest(audioURL string, cmd *cobra.Command) submitRequest {
	req := submitRequest{
		AudioURL:     audioURL,
		LanguageCode: languageCode,
		Provider:     provider,
	}
	if cmd.Flags().Changed("speakers") {
		n := maxSpeakerCount
		req.MaxSpeakerCount = &n
	}
	return req
}

// submitCmd represents the submit command
var submitCmd = &cobra.Command{
	Use:   "submit <audio-url>",
	Short: "Queue an audio file for transcription",
	Long: `Queue an audio file for transcription.

The audio URL may be http(s) or s3://bucket/key when the service has object
storage configured.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := json.Marshal(newSubmitRequest(args[0], cmd))
		if err != nil {
			return err
		}
		return call(cmd.OutOrStdout(), http.MethodPost, "/v1/transcripts", body)
	},
}
