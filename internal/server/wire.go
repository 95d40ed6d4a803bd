// Package server defines the wire representation of chat lines exchanged
// with clients.
package server

import "encoding/json"

// ChatLine is the unit pushed to a client: the display text plus a hex
// color tag. On the wire it is a compact two-element JSON array, e.g.
// ["User#0: hello","#000000"]. Lines are never persisted.
type ChatLine struct {
	Text  string
	Color string
}

// MarshalJSON renders the line as its two-element array form.
func (l ChatLine) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{l.Text, l.Color})
}

// UnmarshalJSON parses the two-element array form.
func (l *ChatLine) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	l.Text, l.Color = pair[0], pair[1]
	return nil
}

// Encode returns the serialized wire form of the line.
func (l ChatLine) Encode() []byte {
	payload, _ := json.Marshal(l) // a pair of strings cannot fail to marshal
	return payload
}
