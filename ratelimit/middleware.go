package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TooManyRequestsMessage is the body message of a rejected request
const TooManyRequestsMessage = "Too many requests, please try again later."

// RejectFunc is notified of every rejected request
type RejectFunc func(ctx context.Context, limiter string)

/* Middleware enforces l in front of next, keyed by ClientIP(r, trustedHops)
 * A failing counter store lets the request through.
 */
func Middleware(l *Limiter, trustedHops int, logger zerolog.Logger, onReject RejectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientIP(r, trustedHops)
			res, err := l.Allow(r.Context(), client)
			setHeaders(w, res)

			switch {
			case errors.Is(err, ErrRateLimited):
				if onReject != nil {
					onReject(r.Context(), l.Name())
				}
				logger.Warn().Str("limiter", l.Name()).Str("client", client).Msg("rate limited")
				retryAfter := int(time.Until(res.ResetAt).Seconds() + 0.5)
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": TooManyRequestsMessage})
				return
			case err != nil:
				logger.Error().Err(err).Str("limiter", l.Name()).Msg("rate limiter unavailable, allowing request")
			}

			next.ServeHTTP(w, r)
		})
	}
}

/* ClientIP returns the address trustedHops proxies away from this server
 * The chain is X-Forwarded-For followed by the peer address, read from the right:
 * 0 trusts nobody and keys on the peer, 1 takes the entry appended by the one
 * proxy in front of us, and so on. Entries left of the trusted ones are never
 * used since the caller can write anything there.
 */
func ClientIP(r *http.Request, trustedHops int) string {
	chain := forwardedFor(r)
	chain = append(chain, peerHost(r.RemoteAddr))

	i := len(chain) - 1 - trustedHops
	if i < 0 {
		i = 0
	}
	return chain[i]
}

func forwardedFor(r *http.Request) []string {
	var chain []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		for _, addr := range strings.Split(header, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				chain = append(chain, peerHost(addr))
			}
		}
	}
	return chain
}

func peerHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func setHeaders(w http.ResponseWriter, res Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
}
