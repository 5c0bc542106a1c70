package main

import (
	"fmt"
	"os"
	"strings"

	"chessBlocker/internal/apperror"
	"chessBlocker/internal/models"
	"chessBlocker/internal/ui"

	"golang.org/x/term"
)

// promptCredential asks for the SSH password on the terminal when none is
// configured. The password doubles as the sudo secret, so a key alone is
// only accepted without prompting when stdin is not a terminal.
func promptCredential(target models.RemoteTarget) (models.RemoteTarget, error) {
	if target.Password != "" {
		return target, nil
	}
	if !ui.IsTerminal(os.Stdin) {
		if target.HasCredential() {
			return target, nil
		}
		return target, apperror.New(apperror.ConfigurationError,
			"no SSH credential configured and stdin is not a terminal", nil)
	}

	password, err := readSecret(fmt.Sprintf("Password for %s@%s: ", target.Username, target.Host))
	if err != nil {
		return target, err
	}
	if password == "" && !target.HasCredential() {
		return target, apperror.New(apperror.ConfigurationError, "empty password", nil)
	}
	return target.WithPassword(password), nil
}

func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", apperror.New(apperror.ConfigurationError, "failed to read password", err)
	}
	return trimSecret(secret), nil
}

// trimSecret drops a trailing line ending and keeps every other byte.
func trimSecret(secret []byte) string {
	return strings.TrimRight(string(secret), "\r\n")
}
