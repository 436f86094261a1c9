// Command transcribectl drives the transcription API from a terminal:
// submit audio, poll a transcript and replay provider callbacks.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
