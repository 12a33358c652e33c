package authcore

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultBreachEndpoint = "https://api.pwnedpasswords.com/range/"

// RangeBreachChecker implements [BreachChecker] against a k-anonymity
// range endpoint. Only the first five hex characters of the password's
// SHA-1 leave the process; the response is scanned locally for the
// remaining suffix. Concurrent lookups for the same prefix are
// collapsed through singleflight.
type RangeBreachChecker struct {
	endpoint string
	client   *http.Client
	group    singleflight.Group
}

// NewRangeBreachChecker creates a checker against the given range
// endpoint. An empty endpoint selects the public Pwned Passwords API.
func NewRangeBreachChecker(endpoint string, timeout time.Duration) *RangeBreachChecker {
	if endpoint == "" {
		endpoint = defaultBreachEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RangeBreachChecker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Count describes the count operation and its observable behavior.
//
// Count may return an error when input validation, dependency calls, or security checks fail.
// Count does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *RangeBreachChecker) Count(ctx context.Context, password string) (int, error) {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	body, err, _ := c.group.Do(prefix, func() (any, error) {
		return c.fetchRange(ctx, prefix)
	})
	if err != nil {
		return 0, err
	}

	return scanRangeBody(body.(string), suffix)
}

func (c *RangeBreachChecker) fetchRange(ctx context.Context, prefix string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+prefix, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Add-Padding", "true")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("breach range endpoint returned %d", resp.StatusCode)
	}

	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	return sb.String(), nil
}

func scanRangeBody(body, suffix string) (int, error) {
	for _, line := range strings.Split(body, "\n") {
		candidate, countStr, found := strings.Cut(strings.TrimSpace(line), ":")
		if !found {
			continue
		}
		if !strings.EqualFold(candidate, suffix) {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil {
			return 0, fmt.Errorf("malformed breach range line: %q", line)
		}
		return count, nil
	}
	return 0, nil
}

// screenPassword consults the configured breach checker. Checker
// outages are treated as a clean result so password operations never
// block on a third-party endpoint.
func (e *Engine) screenPassword(ctx context.Context, password string) error {
	if !e.config.Breach.Enabled || e.breach == nil {
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, e.config.Breach.Timeout)
	defer cancel()

	count, err := e.breach.Count(checkCtx, password)
	if err != nil {
		e.metrics.Inc(MetricBreachCheckUnavailable)
		return nil
	}
	if count > 0 {
		e.metrics.Inc(MetricBreachCheckHit)
		return ErrCompromisedPassword
	}
	return nil
}
