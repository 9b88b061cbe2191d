// Package queue implements ticket issuance and serving-pointer advance on
// top of a ledger.
//
// Every operation re-reads the ledger and filters it to the configured
// scope. Numbering in NumberingScan mode is a read-then-append; with
// serialization disabled two concurrent issuers can compute the same id.
// Options.Serialize closes that race inside one process, and
// NumberingSequence closes it across processes for backends that implement
// ledger.Sequencer.
package queue

import (
	"context"
	"strings"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/juju/clock"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"qms/ticket-queue/internal/events"
	"qms/ticket-queue/internal/ledger"
	"qms/ticket-queue/internal/models"
)

const DefaultLedgerTimeout = 10 * time.Second

type Options struct {
	Scope         Scope
	Numbering     Numbering
	Mode          NumberingMode
	Serialize     bool
	LedgerTimeout time.Duration
	Clock         clock.Clock
	Publisher     events.Publisher
	Logger        log.FieldLogger
}

type Service struct {
	ledger    ledger.Ledger
	scope     Scope
	numbering Numbering
	mode      NumberingMode
	serialize bool
	timeout   time.Duration
	clock     clock.Clock
	publisher events.Publisher
	logger    log.FieldLogger
	locks     *kmutex.Kmutex
	tracer    trace.Tracer
}

func NewService(l ledger.Ledger, options Options) *Service {
	svc := &Service{
		ledger:    l,
		scope:     options.Scope,
		numbering: options.Numbering,
		mode:      options.Mode,
		serialize: options.Serialize,
		timeout:   options.LedgerTimeout,
		clock:     options.Clock,
		publisher: options.Publisher,
		logger:    options.Logger,
		locks:     kmutex.New(),
		tracer:    otel.Tracer("qms/ticket-queue/queue"),
	}
	if svc.scope.Kind == "" {
		svc.scope.Kind = ScopeToday
	}
	if svc.mode == "" {
		svc.mode = NumberingScan
	}
	if svc.timeout <= 0 {
		svc.timeout = DefaultLedgerTimeout
	}
	if svc.clock == nil {
		svc.clock = clock.WallClock
	}
	if svc.publisher == nil {
		svc.publisher = events.Nop{}
	}
	if svc.logger == nil {
		svc.logger = log.StandardLogger()
	}
	return svc
}

func (s *Service) Scope() Scope {
	return s.scope
}

// List returns the tickets in scope in ledger order.
func (s *Service) List(ctx context.Context) (tickets []models.Ticket, err error) {
	ctx, span := s.tracer.Start(ctx, "queue.List")
	defer func() { endSpan(span, err) }()

	tickets, err = s.scoped(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("queue.tickets", len(tickets)))
	return tickets, nil
}

// Issue appends a new ticket numbered one past the highest number in scope.
func (s *Service) Issue(ctx context.Context) (ticket models.Ticket, err error) {
	ctx, span := s.tracer.Start(ctx, "queue.Issue")
	defer func() { endSpan(span, err) }()

	now := s.clock.Now()
	key := s.scope.Key(now)
	defer s.lock(key)()

	tickets, err := s.scoped(ctx, now)
	if err != nil {
		return models.Ticket{}, err
	}

	last := 0
	for _, t := range tickets {
		if n := s.numbering.Parse(t.Queue); n > last {
			last = n
		}
	}
	number := last + 1
	if s.mode == NumberingSequence {
		if seq, ok := s.ledger.(ledger.Sequencer); ok {
			number, err = s.nextNumber(ctx, seq, key, last)
			if err != nil {
				return models.Ticket{}, err
			}
		}
	}

	ticket = models.Ticket{
		Queue:     s.numbering.Format(number),
		Timestamp: s.scope.FormatTimestamp(now),
		Status:    models.StatusEmpty,
	}
	if err = s.append(ctx, ledger.NewRow(ticket.Queue, ticket.Timestamp, "")); err != nil {
		return models.Ticket{}, err
	}

	ticketsIssued.Inc()
	span.SetAttributes(attribute.String("queue.ticket", ticket.Queue))
	s.logger.WithFields(log.Fields{"queue": ticket.Queue, "scope": key}).Info("ticket issued")
	s.publish(ctx, events.Event{
		Type:      events.TypeTicketIssued,
		Queue:     ticket.Queue,
		Status:    ticket.Status,
		Timestamp: now,
	})
	return ticket, nil
}

// Advance records outcome on currentID and returns the id of the ticket
// that follows it. An unknown currentID is a no-op that returns currentID;
// so is advancing past the last ticket, after the outcome is written.
func (s *Service) Advance(ctx context.Context, currentID, outcome string) (next string, err error) {
	ctx, span := s.tracer.Start(ctx, "queue.Advance")
	defer func() { endSpan(span, err) }()

	if !ValidOutcome(outcome) {
		return "", ErrInvalidOutcome
	}
	currentID = strings.TrimSpace(currentID)
	span.SetAttributes(attribute.String("queue.ticket", currentID), attribute.String("queue.outcome", outcome))

	now := s.clock.Now()
	defer s.lock(s.scope.Key(now))()

	tickets, err := s.scoped(ctx, now)
	if err != nil {
		return "", err
	}

	idx := -1
	for i, t := range tickets {
		if t.Queue == currentID {
			idx = i
			break
		}
	}
	logger := s.logger.WithFields(log.Fields{"queue": currentID, "outcome": outcome})
	if idx < 0 {
		logger.Debug("advance on unknown ticket ignored")
		return currentID, nil
	}

	current := tickets[idx]
	if ValidTransition(outcome, current.Status) {
		if err = s.update(ctx, current.Row, outcome); err != nil {
			return "", err
		}
		ticketsAdvanced.WithLabelValues(outcome).Inc()
	} else {
		logger.WithField("status", current.Status).Info("ticket already resolved, status kept")
	}

	next = currentID
	if idx+1 < len(tickets) {
		next = tickets[idx+1].Queue
	}
	logger.WithField("next", next).Info("queue advanced")
	s.publish(ctx, events.Event{
		Type:      events.TypeTicketAdvanced,
		Queue:     currentID,
		NextQueue: next,
		Status:    outcome,
		Timestamp: now,
	})
	return next, nil
}

// scoped reads the ledger and keeps the ticket rows that fall in scope.
// Rows without an id or a parseable timestamp, such as a header row, are
// skipped.
func (s *Service) scoped(ctx context.Context, now time.Time) ([]models.Ticket, error) {
	rows, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	tickets := make([]models.Ticket, 0, len(rows))
	for _, row := range rows {
		id := strings.TrimSpace(row.Get(ledger.ColumnQueue))
		if id == "" {
			continue
		}
		issuedAt, ok := s.scope.ParseTimestamp(row.Get(ledger.ColumnTimestamp))
		if !ok || !s.scope.Contains(issuedAt, now) {
			continue
		}
		tickets = append(tickets, models.Ticket{
			Queue:     id,
			Timestamp: row.Get(ledger.ColumnTimestamp),
			Status:    statusFromCell(row.Get(ledger.ColumnStatus)),
			Row:       row.Position,
		})
	}
	return tickets, nil
}

func statusFromCell(cell string) string {
	status := strings.ToLower(strings.TrimSpace(cell))
	if status == "" {
		return models.StatusEmpty
	}
	return status
}

func (s *Service) lock(key string) func() {
	if !s.serialize {
		return func() {}
	}
	s.locks.Lock(key)
	return func() { s.locks.Unlock(key) }
}

func (s *Service) read(ctx context.Context) ([]ledger.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer observeLedger("read", time.Now())
	rows, err := s.ledger.ReadRows(ctx)
	return rows, ledger.Unavailable("read", err)
}

func (s *Service) append(ctx context.Context, row ledger.Row) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer observeLedger("append", time.Now())
	return ledger.Unavailable("append", s.ledger.AppendRows(ctx, []ledger.Row{row}))
}

func (s *Service) update(ctx context.Context, position int, status string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer observeLedger("update", time.Now())
	return ledger.Unavailable("update", s.ledger.UpdateCell(ctx, position, ledger.ColumnStatus, status))
}

func (s *Service) nextNumber(ctx context.Context, seq ledger.Sequencer, key string, floor int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer observeLedger("sequence", time.Now())
	n, err := seq.NextNumber(ctx, key, floor)
	if err != nil {
		return 0, ledger.Unavailable("sequence", err)
	}
	return n, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("event", event.Type).Warn("publish event failed")
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
