package nfsmount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"runtime"
	"strconv"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"
)

// handleCacheSize bounds the file handles go-nfs keeps per export.
const handleCacheSize = 4096

// Server serves one billy filesystem over NFSv3 on a loopback port.
type Server struct {
	listener net.Listener
	port     int
	done     chan error
}

// NewServer starts serving fs on an ephemeral port.
func NewServer(fs billy.Filesystem, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("nfs listen: %w", err)
	}
	s := &Server{
		listener: listener,
		port:     listener.Addr().(*net.TCPAddr).Port,
		done:     make(chan error, 1),
	}

	handler := nfshelper.NewCachingHandler(nfshelper.NewNullAuthHandler(fs), handleCacheSize)
	go func() {
		err := nfs.Serve(listener, handler)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Warn("nfs server stopped", "error", err)
		}
		s.done <- err
	}()
	logger.Debug("nfs server listening", "port", s.port)
	return s, nil
}

func (s *Server) Port() int { return s.port }

// Close stops accepting connections and waits for the serve loop to exit.
func (s *Server) Close() error {
	err := s.listener.Close()
	<-s.done
	return err
}

// mountArgs builds the read-only mount command line for goos.
func mountArgs(goos string, port int, mountpoint string) ([]string, error) {
	p := strconv.Itoa(port)
	var opts string
	switch goos {
	case "darwin":
		opts = "port=" + p + ",mountport=" + p + ",vers=3,tcp,locallocks,noresvport,rdonly"
	case "linux":
		opts = "port=" + p + ",mountport=" + p + ",vers=3,tcp,local_lock=all,nolock,ro"
	default:
		return nil, fmt.Errorf("unsupported OS: %s", goos)
	}
	return []string{"mount", "-t", "nfs", "-o", opts, "localhost:/", mountpoint}, nil
}

// Mount runs the system mount command through sudo.
func (s *Server) Mount(ctx context.Context, mountpoint string) error {
	args, err := mountArgs(runtime.GOOS, s.port, mountpoint)
	if err != nil {
		return err
	}
	out, err := exec.CommandContext(ctx, "sudo", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount failed: %w\n%s", err, out)
	}
	return nil
}

// Unmount detaches mountpoint, trying diskutil first on macOS.
func Unmount(ctx context.Context, mountpoint string) error {
	if runtime.GOOS == "darwin" {
		if err := exec.CommandContext(ctx, "diskutil", "unmount", mountpoint).Run(); err == nil {
			return nil
		}
	}
	out, err := exec.CommandContext(ctx, "sudo", "umount", mountpoint).CombinedOutput()
	if err != nil {
		return fmt.Errorf("unmount failed: %w\n%s", err, out)
	}
	return nil
}
