package caption

import "captionkit/core"

// CaptionEvent is a finished caption. Remote captions arrived over the data
// channel and are never re-broadcast.
type CaptionEvent struct {
	Caption core.Caption
	Remote  bool
}

func (e *CaptionEvent) GetId() string {
	return "caption.output"
}
