package capture

import "captionkit/core"

type UtteranceSealedEvent struct {
	Utterance core.Utterance
}

func (e *UtteranceSealedEvent) GetId() string {
	return "capture.utterance.sealed"
}

// UtteranceDiscardedEvent reports a clip that was too small to forward.
type UtteranceDiscardedEvent struct {
	UtteranceID string
	Size        int
}

func (e *UtteranceDiscardedEvent) GetId() string {
	return "capture.utterance.discarded"
}
