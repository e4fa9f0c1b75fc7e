package audio

import "context"

// Player hands a decoded clip to whatever device or client plays it.
type Player interface {
	Play(ctx context.Context, sessionID string, clip Buffer) error
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context, sessionID string, clip Buffer) error

// Play calls f.
func (f PlayerFunc) Play(ctx context.Context, sessionID string, clip Buffer) error {
	return f(ctx, sessionID, clip)
}

// Discard drops every clip. Used when no listener is attached.
var Discard Player = PlayerFunc(func(context.Context, string, Buffer) error { return nil })
