// internal/ssh/inspect.go

package ssh

import (
	"context"
	"fmt"
	"io"
	"time"

	"chessBlocker/internal/apperror"

	"github.com/pkg/sftp"
)

// RemoteFile is a snapshot of a file read from the target.
type RemoteFile struct {
	Path    string
	Content []byte
	Size    int64
	ModTime time.Time
}

// ReadFile fetches a remote file over SFTP on the existing connection.
func (s *Session) ReadFile(ctx context.Context, remotePath string) (*RemoteFile, error) {
	sftpClient, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, apperror.New(apperror.ExecutionError, "failed to create SFTP client", err)
	}
	defer sftpClient.Close()

	stop := context.AfterFunc(ctx, func() { sftpClient.Close() })
	defer stop()

	info, err := sftpClient.Stat(remotePath)
	if err != nil {
		return nil, apperror.New(apperror.ExecutionError, fmt.Sprintf("failed to stat %s", remotePath), err)
	}

	f, err := sftpClient.Open(remotePath)
	if err != nil {
		return nil, apperror.New(apperror.ExecutionError, fmt.Sprintf("failed to open %s", remotePath), err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, apperror.New(apperror.ExecutionError, fmt.Sprintf("failed to read %s", remotePath), err)
	}

	return &RemoteFile{
		Path:    remotePath,
		Content: content,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
