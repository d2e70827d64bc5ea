package control

import "time"

type PushToTalkDownEvent struct {
	At time.Time
}

func (e *PushToTalkDownEvent) GetId() string {
	return "control.ptt.down"
}

type PushToTalkUpEvent struct {
	At time.Time
}

func (e *PushToTalkUpEvent) GetId() string {
	return "control.ptt.up"
}
