package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
	"github.com/nhle/tasksync/internal/source/azure"
	"github.com/nhle/tasksync/internal/source/github"
	"github.com/nhle/tasksync/internal/source/jira"
)

const maxWebhookBody = 5 << 20

// Header names used by webhook senders.
const (
	headerGitHubEvent     = "X-GitHub-Event"
	headerGitHubSignature = "X-Hub-Signature-256"
)

var errUnauthorized = errors.New("unauthorized")

func (s *Server) handleJiraWebhook(c *gin.Context) {
	s.handleWebhook(c, model.ProviderJira, func(body []byte) (source.Event, error) {
		if err := s.schemas.validate(schemaJira, body); err != nil {
			return source.Event{}, err
		}
		return jira.ParseWebhook(body)
	})
}

func (s *Server) handleGitHubWebhook(c *gin.Context) {
	event := c.GetHeader(headerGitHubEvent)
	s.handleWebhook(c, model.ProviderGitHub, func(body []byte) (source.Event, error) {
		if event == github.EventIssues {
			if err := s.schemas.validate(schemaGitHubIssues, body); err != nil {
				return source.Event{}, err
			}
		}
		return github.ParseWebhook(event, body)
	})
}

func (s *Server) handleAzureWebhook(c *gin.Context) {
	s.handleWebhook(c, model.ProviderAzure, func(body []byte) (source.Event, error) {
		if err := s.schemas.validate(schemaAzure, body); err != nil {
			return source.Event{}, err
		}
		return azure.ParseWebhook(body)
	})
}

// handleWebhook authenticates, parses and processes one delivery. Any
// delivery that parses is acknowledged with 200, including unmatched
// issues, no-op changes and processing that overran the timeout.
func (s *Server) handleWebhook(c *gin.Context, p model.Provider, parse func([]byte) (source.Event, error)) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, fmt.Errorf("reading %s webhook: %w", p, err))
		return
	}

	if !s.authorized(c, p, body) {
		s.logger.Warn("webhook rejected", slog.String("provider", string(p)))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": errUnauthorized.Error()})
		return
	}

	ev, err := parse(body)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, fmt.Errorf("parsing %s webhook: %w", p, err))
		return
	}

	ctx := c.Request.Context()
	if s.hooks.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.hooks.Timeout)
		defer cancel()
	}

	res, err := s.events.Handle(ctx, ev)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("webhook timed out",
				slog.String("provider", string(p)),
				slog.String("event", ev.Type),
				slog.String("external_id", ev.Key.ExternalID),
				slog.Duration("timeout", s.hooks.Timeout),
			)
			c.JSON(http.StatusOK, gin.H{"success": true, "outcome": "timeout"})
			return
		}
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "outcome": res.Outcome})
}

// authorized checks the shared secret. An empty secret disables the
// check. GitHub may sign the body instead of sending a bearer token.
func (s *Server) authorized(c *gin.Context, p model.Provider, body []byte) bool {
	secret := s.hooks.Secret(p)
	if secret == "" {
		return true
	}

	if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(secret)) == 1 {
			return true
		}
	}

	if p == model.ProviderGitHub {
		return validSignature(secret, body, c.GetHeader(headerGitHubSignature))
	}
	return false
}

// validSignature verifies a "sha256=<hex>" HMAC of body.
func validSignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
