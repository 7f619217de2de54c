package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"denim/internal/domain"
)

// Kind is a classified operator line.
type Kind int

const (
	// None is an ordinary chat message.
	None Kind = iota
	View
	Edit
	Delete
	Help
	Quit
)

var kinds = map[string]Kind{
	":v": View,
	":e": Edit,
	":d": Delete,
	":h": Help,
	":q": Quit,
}

// Classify maps a line to a command. Whitespace anywhere in the line is
// ignored, so " : v " is View.
func Classify(line string) Kind {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, line)
	return kinds[compact]
}

// Local reports whether k runs on this side only and keeps the current key.
func (k Kind) Local() bool {
	return k == View || k == Edit || k == Delete || k == Help
}

func (k Kind) String() string {
	switch k {
	case None:
		return "message"
	case View:
		return "view"
	case Edit:
		return "edit"
	case Delete:
		return "delete"
	case Help:
		return "help"
	case Quit:
		return "quit"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrBadIndex is an index the operator typed that is not a number.
var ErrBadIndex = errors.New("not a valid message index")

const helpText = `Commands:
  :v  view the message history
  :e  edit a message in the history
  :d  delete a message from the history
  :h  show this help
  :q  end the session
Anything else is sent to the peer.
`

// Service runs local commands against the history.
type Service struct {
	history domain.HistoryStore
	input   domain.InputSource
	out     io.Writer
}

// New constructs a command Service. Prompts go to out and answers are read
// from input.
func New(history domain.HistoryStore, input domain.InputSource, out io.Writer) *Service {
	return &Service{history: history, input: input, out: out}
}

// Execute runs a local command.
//
// Operator mistakes (a bad or unknown index) are printed and reported as
// nil; the returned error is reserved for store and input failures.
func (s *Service) Execute(ctx context.Context, k Kind) error {
	switch k {
	case View:
		return s.view(ctx)
	case Edit:
		return s.edit(ctx)
	case Delete:
		return s.delete(ctx)
	case Help:
		_, err := io.WriteString(s.out, helpText)
		return err
	default:
		return fmt.Errorf("%v is not a local command", k)
	}
}

func (s *Service) view(ctx context.Context) error {
	recs, err := s.history.List(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		_, err := fmt.Fprintln(s.out, "No messages yet.")
		return err
	}
	for _, r := range recs {
		if _, err := fmt.Fprintf(s.out, "[%d] %s (%s): %s\n",
			r.Index, r.Person, r.Time.Local().Format("2006-01-02 15:04:05"), r.Text); err != nil {
			return err
		}
	}
	return nil
}

// Steps:
//  1. Ask for the index.
//  2. Ask for the replacement text.
//  3. Update the record.
func (s *Service) edit(ctx context.Context) error {
	idx, err := s.askIndex(ctx, "Enter the index of the message to edit: ")
	if err != nil {
		return s.operatorError(err)
	}
	fmt.Fprint(s.out, "Enter the new message: ")
	text, err := s.input.ReadLine(ctx)
	if err != nil {
		return err
	}
	if err := s.history.Update(ctx, idx, text); err != nil {
		return s.operatorError(err)
	}
	_, err = fmt.Fprintf(s.out, "Message %d updated.\n", idx)
	return err
}

func (s *Service) delete(ctx context.Context) error {
	idx, err := s.askIndex(ctx, "Enter the index of the message to delete: ")
	if err != nil {
		return s.operatorError(err)
	}
	if err := s.history.Delete(ctx, idx); err != nil {
		return s.operatorError(err)
	}
	_, err = fmt.Fprintf(s.out, "Message %d deleted.\n", idx)
	return err
}

func (s *Service) askIndex(ctx context.Context, prompt string) (int, error) {
	fmt.Fprint(s.out, prompt)
	line, err := s.input.ReadLine(ctx)
	if err != nil {
		return 0, err
	}
	idx, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || idx < 1 {
		return 0, fmt.Errorf("%w: %q", ErrBadIndex, line)
	}
	return idx, nil
}

// operatorError prints recoverable mistakes and passes everything else up.
func (s *Service) operatorError(err error) error {
	if errors.Is(err, ErrBadIndex) || errors.Is(err, domain.ErrRecordNotFound) {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return nil
	}
	return err
}
