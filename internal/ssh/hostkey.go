// internal/ssh/hostkey.go

package ssh

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"chessBlocker/internal/apperror"
	"chessBlocker/internal/models"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyVerificationRequired means the target is not in known_hosts yet.
type HostKeyVerificationRequired struct {
	Addr string
}

func (e *HostKeyVerificationRequired) Error() string {
	return fmt.Sprintf("host key for %s is not trusted yet (run trust-host)", e.Addr)
}

func authMethods(target models.RemoteTarget) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if target.PrivateKeyPath != "" {
		key, err := os.ReadFile(target.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) && target.Password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(target.Password))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if target.Password != "" {
		password := target.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}
	return methods, nil
}

func hostKeyCallback(target models.RemoteTarget) (ssh.HostKeyCallback, error) {
	if target.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if target.KnownHostsPath == "" {
		return nil, apperror.New(apperror.ConfigurationError, "known_hosts path is not configured", nil)
	}
	if _, err := os.Stat(target.KnownHostsPath); errors.Is(err, os.ErrNotExist) {
		return nil, apperror.New(apperror.ConfigurationError, "host key verification failed",
			&HostKeyVerificationRequired{Addr: target.Addr()})
	}

	callback, err := knownhosts.New(target.KnownHostsPath)
	if err != nil {
		return nil, apperror.New(apperror.ConfigurationError, "failed to load known_hosts", err)
	}
	return callback, nil
}

func classifyDialError(addr string, err error) error {
	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		if len(keyErr.Want) == 0 {
			return apperror.New(apperror.ConfigurationError, "host key verification failed",
				&HostKeyVerificationRequired{Addr: addr})
		}
		return apperror.New(apperror.ConnectionError, "host key mismatch for "+addr, err)
	}
	return apperror.New(apperror.ConnectionError, "failed to connect to "+addr, err)
}

// FetchHostKey performs a handshake without credentials only to learn the
// server's host key; the expected auth failure is ignored.
func FetchHostKey(ctx context.Context, target models.RemoteTarget) (ssh.PublicKey, error) {
	hostKeyChan := make(chan ssh.PublicKey, 1)

	timeout := target.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	config := &ssh.ClientConfig{
		User: target.Username,
		Auth: []ssh.AuthMethod{},
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			select {
			case hostKeyChan <- key:
			default:
			}
			return nil
		},
		Timeout: timeout,
	}

	client, err := dial(ctx, target.Addr(), config, timeout)
	if err == nil {
		client.Close()
	}

	select {
	case key := <-hostKeyChan:
		return key, nil
	default:
		if err == nil {
			err = errors.New("no host key received")
		}
		return nil, apperror.New(apperror.ConnectionError, "could not retrieve host key from "+target.Addr(), err)
	}
}

// TrustHost stores the target's current host key in the known_hosts file,
// replacing earlier entries for the same address, and returns its fingerprint.
func TrustHost(ctx context.Context, target models.RemoteTarget) (string, error) {
	key, err := FetchHostKey(ctx, target)
	if err != nil {
		return "", err
	}
	if err := saveHostKey(target.KnownHostsPath, target.Addr(), key); err != nil {
		return "", err
	}
	return ssh.FingerprintSHA256(key), nil
}

func saveHostKey(knownHostsPath, addr string, key ssh.PublicKey) error {
	if knownHostsPath == "" {
		return apperror.New(apperror.ConfigurationError, "known_hosts path is not configured", nil)
	}
	if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", knownHostsPath, err)
	}

	hostPattern := knownhosts.Normalize(addr)
	var kept []string
	if content, err := os.ReadFile(knownHostsPath); err == nil {
		scanner := bufio.NewScanner(strings.NewReader(string(content)))
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			if fields := strings.Fields(line); len(fields) > 0 && containsHost(fields[0], hostPattern) {
				continue
			}
			kept = append(kept, line)
		}
	}

	kept = append(kept, knownhosts.Line([]string{hostPattern}, key))
	content := strings.Join(kept, "\n") + "\n"
	if err := os.WriteFile(knownHostsPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write known_hosts file %s: %w", knownHostsPath, err)
	}
	return nil
}

func containsHost(patterns, host string) bool {
	for _, p := range strings.Split(patterns, ",") {
		if p == host {
			return true
		}
	}
	return false
}
