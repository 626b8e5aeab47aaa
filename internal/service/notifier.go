package service

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/tutor-admin/pkg/errors"
)

// Notifier surfaces user-visible outcomes.
type Notifier interface {
	Success(message string)
	Error(err error)
}

// WriterNotifier prints outcomes to terminal streams and logs errors.
type WriterNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	logger *zap.Logger
}

// NewWriterNotifier builds a notifier writing successes to out and errors to errOut.
func NewWriterNotifier(out, errOut io.Writer, logger *zap.Logger) *WriterNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WriterNotifier{out: out, errOut: errOut, logger: logger}
}

// Success prints message.
func (n *WriterNotifier) Success(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.out, message) //nolint:errcheck
}

// Error prints a one-line description of err.
func (n *WriterNotifier) Error(err error) {
	if err == nil {
		return
	}
	appErr := appErrors.FromError(err)
	n.logger.Warn("operation failed", zap.String("code", appErr.Code), zap.Int("status", appErr.Status), zap.Error(err))
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.errOut, "error: %s\n", Describe(err)) //nolint:errcheck
}

// Describe renders err for a person.
func Describe(err error) string {
	appErr := appErrors.FromError(err)
	switch appErr.Code {
	case appErrors.CodeSessionExpired:
		return "your session has expired, run `tutorctl login` again"
	case appErrors.CodeAuthentication:
		return "invalid username or password"
	case appErrors.CodeHTTP:
		return fmt.Sprintf("%s (HTTP %d)", appErr.Message, appErr.Status)
	}
	if appErr.Err != nil && appErr.Code == appErrors.CodeInternal {
		return fmt.Sprintf("%s: %v", appErr.Message, appErr.Err)
	}
	return appErr.Message
}
