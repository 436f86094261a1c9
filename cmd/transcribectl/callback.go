package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	callbackProvider string
	callbackMethod   string
	callbackJobID    string
)

func init() {
	callbackCmd.Flags().StringVarP(&callbackProvider, "provider", "p", "onramp_lab_whisper", "provider the callback is delivered for")
	callbackCmd.Flags().StringVarP(&callbackMethod, "method", "X", http.MethodPost, "HTTP method, POST or PUT")
	callbackCmd.Flags().StringVar(&callbackJobID, "job", "", "overwrite the job id in the file")
}

// loadCallback reads a callback body, optionally retargeting it to jobID.
func loadCallback(path, jobID string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if jobID == "" {
		return raw, nil
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	body["name"] = jobID
	return json.Marshal(body)
}

// callbackCmd represents the callback command
var callbackCmd = &cobra.Command{
	Use:   "callback <file.json>",
	Short: "Replay a provider callback body against the service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method := strings.ToUpper(callbackMethod)
		if method != http.MethodPost && method != http.MethodPut {
			return fmt.Errorf("unsupported callback method %q", callbackMethod)
		}

		body, err := loadCallback(args[0], callbackJobID)
		if err != nil {
			return err
		}
		return call(cmd.OutOrStdout(), method, "/v1/callbacks/"+callbackProvider, body)
	},
}
