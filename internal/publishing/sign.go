package publishing

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	ierrors "github.com/relicta-tech/indra/internal/errors"
)

// Signer produces a detached, ASCII-armored signature.
type Signer interface {
	Sign(ctx context.Context, data []byte) ([]byte, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, data []byte) ([]byte, error)

// Sign implements Signer.
func (f SignerFunc) Sign(ctx context.Context, data []byte) ([]byte, error) {
	return f(ctx, data)
}

// GPGSigner signs with the gpg command line tool, using the agent for
// passphrases.
type GPGSigner struct {
	// Command defaults to "gpg".
	Command string
	// KeyName selects the signing key; empty uses gpg's default key.
	KeyName string
}

// Sign implements Signer.
func (s GPGSigner) Sign(ctx context.Context, data []byte) ([]byte, error) {
	const op = "publishing.GPGSigner.Sign"

	command := s.Command
	if command == "" {
		command = "gpg"
	}
	args := []string{"--batch", "--yes", "--armor", "--detach-sign"}
	if s.KeyName != "" {
		args = append(args, "--local-user", s.KeyName)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "gpg failed"
		}
		return nil, ierrors.Wrap(err, ierrors.KindIO, op, msg)
	}
	return stdout.Bytes(), nil
}
