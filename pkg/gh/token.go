package gh

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoToken is returned when no GitHub token could be found
var ErrNoToken = errors.New("no GitHub token available")

// ResolveToken returns the explicit token if set, otherwise asks the gh CLI for the token of the
// logged in user.
func ResolveToken(ctx context.Context, explicit string) (string, error) {
	if token := strings.TrimSpace(explicit); token != "" {
		return token, nil
	}

	path, err := exec.LookPath("gh")
	if err != nil {
		return "", fmt.Errorf("%w: gh not installed", ErrNoToken)
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "auth", "token")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: gh auth token: %v", ErrNoToken, err)
	}

	// the token is on the first line
	scanner := bufio.NewScanner(&out)
	if scanner.Scan() {
		if token := strings.TrimSpace(scanner.Text()); token != "" {
			return token, nil
		}
	}
	return "", ErrNoToken
}
