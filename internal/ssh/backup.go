// internal/ssh/backup.go

package ssh

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"chessBlocker/internal/apperror"

	scp "github.com/bramvdbogaerde/go-scp"
)

// CopyFromRemote downloads remotePath to localPath with SCP. A partially
// written local file is removed on failure.
func (s *Session) CopyFromRemote(ctx context.Context, remotePath, localPath string) error {
	client, err := scp.NewClientBySSH(s.client)
	if err != nil {
		return apperror.New(apperror.ExecutionError, "failed to create SCP client", err)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}

	f, err := os.OpenFile(localPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}

	if err := client.CopyFromRemote(ctx, f, remotePath); err != nil {
		f.Close()
		os.Remove(localPath)
		return apperror.New(apperror.ExecutionError, fmt.Sprintf("failed to copy %s", remotePath), err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close local file: %w", err)
	}
	s.logger.Debug("remote file copied", "remote", remotePath, "local", localPath)
	return nil
}
