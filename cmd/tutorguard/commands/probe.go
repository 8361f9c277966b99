package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/tutorguard/internal/errorhandler"
	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/logging"
	"git.home.luguber.info/inful/tutorguard/internal/retry"
)

// maxProbeBody bounds how much of a response body is drained per attempt.
const maxProbeBody = 1 << 20

// ProbeCmd implements the 'probe' command.
type ProbeCmd struct {
	URL      string        `arg:"" help:"URL to request"`
	Timeout  time.Duration `help:"Timeout for a single attempt" default:"10s"`
	Attempts int           `help:"Total attempts; 0 uses retry.max_attempts from the configuration" default:"0"`
}

func (p *ProbeCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	h, err := NewHandler(cfg, g.logger(), nil)
	if err != nil {
		return err
	}

	policy := retry.FromConfig(cfg.Retry)
	if p.Attempts > 0 {
		policy = policy.WithMaxAttempts(p.Attempts)
	}

	client := &http.Client{Timeout: p.Timeout}
	ctx := logging.WithEndpoint(g.context(), http.MethodGet, p.URL)
	res := errorhandler.Retry(ctx, h, policy, func(ctx context.Context) (int, error) {
		return probeOnce(ctx, client, p.URL)
	})
	status, err := res.Unwrap()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "OK %d %s\n", status, p.URL)
	return nil
}

// probeOnce performs one GET. Transport failures are NETWORK errors and
// non-2xx responses are API errors carrying the status code.
func probeOnce(ctx context.Context, client *http.Client, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, errors.NewValidationError(fmt.Sprintf("invalid URL %q", url), "url").WithCause(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, errors.NewNetworkError(http.MethodGet, err.Error(), isTimeout(err)).WithCause(err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, errors.NewAPIError(resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return resp.StatusCode, nil
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
