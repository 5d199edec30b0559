package commands

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/duobooth/internal/session"
)

var joinOpts callOptions

var joinCmd = &cobra.Command{
	Use:     "join <room-id|url>",
	Aliases: []string{"j"},
	Short:   "Join a friend's room",
	Long: `Join a photo booth room using the code your friend shared.

Examples:
  duobooth join ABC123
  duobooth join abc123 --filter Glitch
  duobooth join https://booth.example.com/?room=ABC123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return runCall(cmd.Context(), session.RoleJoiner, roomID, joinOpts)
	},
}

// parseRoomInput accepts a bare room code or a link carrying one, either as
// a room query parameter or as the last path segment.
func parseRoomInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("invalid room link: %w", err)
		}
		if code := u.Query().Get("room"); code != "" {
			input = code
		} else {
			input = path.Base(strings.TrimRight(u.Path, "/"))
		}
	}

	code := strings.ToUpper(input)
	if len(code) != 6 || strings.IndexFunc(code, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) >= 0 {
		return "", fmt.Errorf("invalid room code %q: expected 6 letters or digits", input)
	}
	return code, nil
}

func init() {
	joinOpts.register(joinCmd.Flags())
}
