// internal/engine/reply.go
package engine

import (
	"campus-ai-bot/internal/lexicon"
)

// Button is one inline option attached to a reply. Data carries the
// callback payload; URL buttons open a link instead.
type Button struct {
	Label string
	Data  string
	URL   string
}

// Reply is the single outbound message produced for an inbound event.
// The transport renders Buttons as an inline keyboard.
type Reply struct {
	Text    string
	Buttons [][]Button
}

func reply(lang string, key lexicon.Key, args ...interface{}) *Reply {
	return &Reply{Text: lexicon.Textf(lang, key, args...)}
}

func (r *Reply) withButtons(rows ...[]Button) *Reply {
	r.Buttons = rows
	return r
}

func btn(lang string, key lexicon.Key, data string) Button {
	return Button{Label: lexicon.Text(lang, key), Data: data}
}
