// Package identifier turns an encoded image into an insect identification.
// Remote inference failures are absorbed into a deterministic fallback; only
// a confident "not an insect" answer is reported to the caller as an error.
package identifier

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/insect-id/internal/capture"
	"github.com/example/insect-id/internal/insect"
)

const defaultMIMEType = "image/jpeg"

// Source records where an identification came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Identification is a successful, fully populated result. When Source is
// SourceFallback the record is a canned approximation and FallbackReason says
// why the model answer was not used.
type Identification struct {
	Record         insect.IdentificationRecord
	Source         Source
	FallbackReason Kind
	Detail         string
	Latency        time.Duration
}

// Degraded reports whether the record is an approximation.
func (i *Identification) Degraded() bool {
	return i != nil && i.Source == SourceFallback
}

// Generator performs one multimodal inference call and returns the model's
// raw text answer.
type Generator interface {
	Generate(ctx context.Context, prompt, mimeType, payload string) (string, error)
}

// Identifier is the contract consumed by the pipeline.
type Identifier interface {
	Identify(ctx context.Context, encodedImage string) (*Identification, error)
}

var errNotConfigured = errors.New("inference endpoint not configured")

// Client applies the parsing and fallback policy around a Generator. A nil
// Generator sends every request straight to the fallback catalog.
type Client struct {
	generator Generator
	catalog   []insect.IdentificationRecord
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewClient builds a Client. timeout bounds each remote call; zero leaves the
// bound to the caller's context.
func NewClient(generator Generator, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		generator: generator,
		catalog:   FallbackCatalog(),
		timeout:   timeout,
		logger:    logger.Named("identifier"),
		now:       time.Now,
	}
}

// Identify strips the data URL prefix, asks the model once and parses its
// answer. Transport and parsing failures yield a fallback record chosen by
// hashing the payload; a not-an-insect answer returns a *ClassificationError
// matching ErrNotAnInsect.
func (c *Client) Identify(ctx context.Context, encodedImage string) (*Identification, error) {
	payload := capture.StripPrefix(encodedImage)
	mimeType := capture.MIMEType(encodedImage)
	if mimeType == "" {
		mimeType = defaultMIMEType
	}

	started := c.now()
	text, err := c.generate(ctx, mimeType, payload)
	latency := c.now().Sub(started)
	if err != nil {
		var classErr *ClassificationError
		if !errors.As(err, &classErr) {
			err = &ClassificationError{Kind: KindTransport, Err: err}
		}
		return c.fallback(payload, err, latency), nil
	}

	record, err := ParseResponse(text)
	if err != nil {
		var classErr *ClassificationError
		if errors.As(err, &classErr) && classErr.Kind == KindNotAnInsect {
			c.logger.Info("subject is not an insect", zap.String("reason", classErr.Detail))
			return nil, classErr
		}
		return c.fallback(payload, err, latency), nil
	}

	c.logger.Debug("identified",
		zap.String("common_name", record.CommonName),
		zap.Duration("latency", latency))
	return &Identification{Record: record, Source: SourceModel, Latency: latency}, nil
}

func (c *Client) generate(ctx context.Context, mimeType, payload string) (string, error) {
	if c.generator == nil {
		return "", errNotConfigured
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.generator.Generate(ctx, Prompt, mimeType, payload)
}

func (c *Client) fallback(payload string, cause error, latency time.Duration) *Identification {
	kind := KindMalformed
	var classErr *ClassificationError
	if errors.As(cause, &classErr) {
		kind = classErr.Kind
	}

	index := FallbackIndex([]byte(payload), len(c.catalog))
	c.logger.Warn("using fallback identification",
		zap.String("kind", string(kind)),
		zap.Int("catalog_index", index),
		zap.Error(cause))

	return &Identification{
		Record:         c.catalog[index],
		Source:         SourceFallback,
		FallbackReason: kind,
		Detail:         cause.Error(),
		Latency:        latency,
	}
}
