// Package voice turns one speech-recognition result into a pending debt
// command. A command is only committed after an explicit Confirm, through
// the same ledger entry point as manual input.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/mmynk/ledgersync/internal/metrics"
	"github.com/mmynk/ledgersync/internal/models"
)

// DefaultDuplicateWindow is how long an identical utterance is ignored.
const DefaultDuplicateWindow = 4000 * time.Millisecond

// DefaultKeywords mean "debt".
var DefaultKeywords = []string{"دين", "debt"}

var (
	ErrNoPendingCommand = errors.New("no command awaiting confirmation")
	ErrPendingCommand   = errors.New("a command is awaiting confirmation")
	ErrNotListening     = errors.New("parser is not listening")
)

// State of the parser.
type State int

const (
	Idle State = iota
	Listening
	Parsing
	ConfirmPending
	Committed
	Rejected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Parsing:
		return "parsing"
	case ConfirmPending:
		return "confirm_pending"
	case Committed:
		return "committed"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseError reports an utterance that cannot become a command.
type ParseError struct {
	Utterance string
	Reason    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Utterance, e.Reason)
}

// Command is a parsed debt entry waiting for confirmation.
type Command struct {
	Name      string
	Amount    decimal.Decimal
	Date      string
	TimeOfDay models.TimeOfDay
}

// DebtSink commits a confirmed command. *ledger.Session implements it.
type DebtSink interface {
	CreateOrIncrementDebt(ctx context.Context, debtorName string, amount decimal.Decimal, date string, timeOfDay models.TimeOfDay) (models.DebtRecord, error)
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// WithDuplicateWindow sets the duplicate suppression window.
func WithDuplicateWindow(d time.Duration) Option {
	return func(p *Parser) { p.window = d }
}

// WithVocabulary replaces the number words.
func WithVocabulary(v Vocabulary) Option {
	return func(p *Parser) { p.vocab = v }
}

// WithKeywords replaces the debt keywords.
func WithKeywords(words ...string) Option {
	return func(p *Parser) { p.keywordList = words }
}

// WithMetrics records outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Parser) { p.metrics = m }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

// Parser is the voice command state machine. It is safe for use from the
// recognition callback and the UI at the same time.
type Parser struct {
	now         func() time.Time
	window      time.Duration
	vocab       Vocabulary
	keywordList []string
	keywords    map[string]bool
	metrics     *metrics.Metrics
	logger      *slog.Logger

	mu       sync.Mutex
	state    State
	pending  *Command
	lastText string
	lastAt   time.Time
}

// New creates an idle parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		now:         time.Now,
		window:      DefaultDuplicateWindow,
		vocab:       DefaultVocabulary(),
		keywordList: DefaultKeywords,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.vocab = p.vocab.normalized()
	p.keywords = make(map[string]bool, len(p.keywordList))
	for _, k := range p.keywordList {
		p.keywords[normalize(k)] = true
	}
	return p
}

// State returns the current state.
func (p *Parser) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pending returns a copy of the command awaiting confirmation, or nil.
func (p *Parser) Pending() *Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return nil
	}
	cmd := *p.pending
	return &cmd
}

// Listen marks the start of a recognition session. A command awaiting
// confirmation must be confirmed or rejected first.
func (p *Parser) Listen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == ConfirmPending {
		return ErrPendingCommand
	}
	p.state = Listening
	return nil
}

// HandleUtterance parses one recognition result. It returns nil, nil when
// the utterance repeats the previous one within the duplicate window.
func (p *Parser) HandleUtterance(text string) (*Command, error) {
	clean := sanitize(text)
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if clean != "" && clean == p.lastText && now.Sub(p.lastAt) < p.window {
		p.metrics.Utterance("duplicate")
		p.logger.Debug("Duplicate utterance ignored", "text", clean)
		return nil, nil
	}
	if p.state != Listening {
		return nil, ErrNotListening
	}
	p.lastText = clean
	p.lastAt = now
	p.state = Parsing

	cmd, err := p.parse(clean)
	if err != nil {
		p.state = Rejected
		p.metrics.Utterance("unparsed")
		p.logger.Info("Utterance rejected", "text", clean, "error", err)
		return nil, err
	}

	cmd.Date = now.Format(models.DateLayout)
	cmd.TimeOfDay = models.TimeOfDayAt(now)
	p.pending = cmd
	p.state = ConfirmPending
	p.metrics.Utterance("parsed")
	p.logger.Info("Voice command parsed",
		"debtor", cmd.Name,
		"amount", cmd.Amount.String(),
		"date", cmd.Date,
		"time_of_day", cmd.TimeOfDay,
	)

	out := *cmd
	return &out, nil
}

// Confirm commits the pending command through sink.
func (p *Parser) Confirm(ctx context.Context, sink DebtSink) (models.DebtRecord, error) {
	p.mu.Lock()
	if p.state != ConfirmPending || p.pending == nil {
		p.mu.Unlock()
		return models.DebtRecord{}, ErrNoPendingCommand
	}
	cmd := *p.pending
	p.pending = nil
	p.mu.Unlock()

	rec, err := sink.CreateOrIncrementDebt(ctx, cmd.Name, cmd.Amount, cmd.Date, cmd.TimeOfDay)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.state = Rejected
		p.metrics.Utterance("commit_failed")
		return rec, fmt.Errorf("failed to commit voice command: %w", err)
	}
	p.state = Committed
	p.metrics.Utterance("confirmed")
	return rec, nil
}

// Reject discards the pending command.
func (p *Parser) Reject() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != ConfirmPending {
		return ErrNoPendingCommand
	}
	p.pending = nil
	p.state = Rejected
	p.metrics.Utterance("cancelled")
	return nil
}

// parse splits clean on the first debt keyword: the words before it name the
// debtor and the words after it give the amount.
func (p *Parser) parse(clean string) (*Command, error) {
	fields := strings.Fields(clean)
	at := -1
	for i, f := range fields {
		if p.keywords[normalize(trimPunct(f))] {
			at = i
			break
		}
	}
	if at < 0 {
		return nil, &ParseError{Utterance: clean, Reason: "no debt keyword"}
	}

	name := trimPunct(strings.Join(fields[:at], " "))
	if name == "" {
		return nil, &ParseError{Utterance: clean, Reason: "missing debtor name"}
	}

	amount := p.amount(fields[at+1:])
	if !amount.IsPositive() {
		return nil, &ParseError{Utterance: clean, Reason: "missing or zero amount"}
	}
	return &Command{Name: name, Amount: amount}, nil
}

// amount reads digits when any are present and number words otherwise.
// Anything unintelligible gives zero.
func (p *Parser) amount(fields []string) decimal.Decimal {
	if d, ok := digitsAmount(strings.Join(fields, " ")); ok {
		return d
	}
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if w := normalize(trimPunct(f)); w != "" {
			words = append(words, w)
		}
	}
	return p.vocab.decode(words)
}

var structural = strings.NewReplacer("<", "", ">", "", "{", "", "}", "", "[", "", "]", "")

func sanitize(text string) string {
	return strings.Join(strings.Fields(structural.Replace(text)), " ")
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}
