// internal/orchestrator/policy.go

package orchestrator

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"chessBlocker/internal/apperror"
	"chessBlocker/internal/models"
)

// PolicySource returns the literal hosts-file content for a policy.
type PolicySource interface {
	ReadPolicy(policy models.HostsPolicy) (string, error)
}

// PolicyFiles maps each policy to a local file. Files are read on every
// call and never cached.
type PolicyFiles map[models.HostsPolicy]string

func (p PolicyFiles) ReadPolicy(policy models.HostsPolicy) (string, error) {
	path, ok := p[policy]
	if !ok || path == "" {
		return "", apperror.New(apperror.ConfigurationError, fmt.Sprintf("no file configured for %s policy", policy), nil)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", apperror.New(apperror.ConfigurationError, fmt.Sprintf("failed to read %s policy file", policy), err)
	}
	return string(content), nil
}

// trimPolicy drops trailing newlines; the replace command appends one.
func trimPolicy(content string) string {
	return strings.TrimRight(content, "\r\n")
}

// PolicyUnknown is reported when the remote file matches neither variant.
const PolicyUnknown models.HostsPolicy = "unknown"

// ClassifyHosts compares remote hosts-file content against both local
// variants, ignoring trailing newlines and CRLF differences.
func ClassifyHosts(remote []byte, policies PolicySource) (models.HostsPolicy, error) {
	normalized := normalizeHosts(remote)
	for _, policy := range []models.HostsPolicy{models.PolicyBlocked, models.PolicyAllowed} {
		content, err := policies.ReadPolicy(policy)
		if err != nil {
			return "", err
		}
		if bytes.Equal(normalized, normalizeHosts([]byte(content))) {
			return policy, nil
		}
	}
	return PolicyUnknown, nil
}

func normalizeHosts(content []byte) []byte {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	return bytes.TrimRight(content, "\n")
}
