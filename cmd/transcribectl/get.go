package main

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <transcript-id>",
	Short: "Print a transcript and its segments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid transcript id %q", args[0])
		}
		return call(cmd.OutOrStdout(), http.MethodGet, fmt.Sprintf("/v1/transcripts/%d", id), nil)
	},
}
