// Package nats publishes committed changes to NATS subjects.
//
// Each change is one JSON message on <prefix>.<classification>, so
// consumers can subscribe to a single category ("docwatch.changes.security")
// or to all of them ("docwatch.changes.>"). The change id is sent as the
// Nats-Msg-Id header, which lets a JetStream stream drop redeliveries.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
)

// Ensure Publisher implements the interface.
var _ driven.ChangePublisher = (*Publisher)(nil)

// Message headers.
const (
	HeaderSource  = "Docwatch-Source"
	HeaderVersion = "Docwatch-Version"
)

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// Event is the JSON body of a change message.
type Event struct {
	ID              string    `json:"id"`
	SourceID        string    `json:"source_id"`
	Title           string    `json:"title,omitempty"`
	OldVersionID    string    `json:"old_version_id"`
	NewVersionID    string    `json:"new_version_id"`
	Type            string    `json:"type"`
	SectionID       string    `json:"section_id"`
	Heading         string    `json:"heading,omitempty"`
	Classification  string    `json:"classification"`
	ImpactScore     float64   `json:"impact_score"`
	ConfidenceScore float64   `json:"confidence_score"`
	Diff            string    `json:"diff"`
	DetectedAt      time.Time `json:"detected_at"`
}

// Publisher implements driven.ChangePublisher.
type Publisher struct {
	conn   conn
	prefix string
}

// Connect dials url and returns a publisher using subject prefix.
func Connect(url, prefix string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("docwatch"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return newPublisher(nc, prefix), nil
}

func newPublisher(c conn, prefix string) *Publisher {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = domain.DefaultSubjectPrefix
	}
	return &Publisher{conn: c, prefix: prefix}
}

// Subject returns the subject a change is published on.
func (p *Publisher) Subject(c *domain.Change) string {
	return p.prefix + "." + string(c.Classification)
}

// Publish sends one message per change and flushes.
// Every change is attempted; the errors are joined.
func (p *Publisher) Publish(ctx context.Context, version *domain.Version, changes []domain.Change) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}

	var errs []error
	for i := range changes {
		c := &changes[i]
		msg, err := p.message(version, c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.conn.PublishMsg(msg); err != nil {
			errs = append(errs, fmt.Errorf("publish change %s: %w", c.ID, err))
		}
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	return errors.Join(errs...)
}

func (p *Publisher) message(version *domain.Version, c *domain.Change) (*nats.Msg, error) {
	ev := Event{
		ID:              c.ID,
		SourceID:        c.SourceID,
		Title:           version.Metadata["title"],
		OldVersionID:    c.OldVersionID,
		NewVersionID:    c.NewVersionID,
		Type:            string(c.Type),
		SectionID:       c.SectionID,
		Heading:         c.Heading,
		Classification:  string(c.Classification),
		ImpactScore:     c.ImpactScore,
		ConfidenceScore: c.ConfidenceScore,
		Diff:            c.Diff,
		DetectedAt:      c.DetectedAt,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal change %s: %w", c.ID, err)
	}

	msg := nats.NewMsg(p.Subject(c))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, c.ID)
	msg.Header.Set(HeaderSource, c.SourceID)
	msg.Header.Set(HeaderVersion, c.NewVersionID)
	return msg, nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
