package usecase

import (
	"strings"

	"tutorcast/internal/domain"
	"tutorcast/internal/ports"
)

// turnAccumulator joins streamed output fragments into one turn of text.
type turnAccumulator struct {
	buf strings.Builder
}

// Append adds a fragment and returns the text accumulated so far.
func (a *turnAccumulator) Append(text string) string {
	a.buf.WriteString(text)
	return a.buf.String()
}

// Complete returns the finished turn and resets for the next one.
func (a *turnAccumulator) Complete() string {
	text := a.buf.String()
	a.buf.Reset()
	return text
}

func consumeFragments(session ports.LiveSession, events ports.EventSink, done chan struct{}) {
	defer close(done)

	var turn turnAccumulator
	for fragment := range session.Fragments() {
		switch fragment.Kind {
		case domain.FragmentKindModelTurnPart:
			events.PartialTurn(turn.Append(fragment.Text))
		case domain.FragmentKindTurnComplete:
			events.TurnComplete(turn.Complete())
		}
	}
}
