// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tty

// Input-flag bits (spec §4.6 "input-flag mappings").
const (
	// IgnCR discards every incoming carriage return; only IStrip runs
	// before it.
	IgnCR = 1 << iota
	// ICRNL maps an incoming carriage return to newline.
	ICRNL
	// INLCR maps an incoming newline to carriage return.
	INLCR
	// IStrip clears the high bit of every incoming byte.
	IStrip
)

// Local-flag bits (spec §4.6, §3 TTY entity "local flags").
const (
	// Canon selects canonical (line-buffered) mode; off is raw mode.
	Canon = 1 << iota
	// Signal enables the interrupt/quit/suspend control characters.
	Signal
	// Echo echoes ordinary input bytes to the screen.
	Echo
	// EchoErase echoes a visible erase when the erase character is seen
	// in canonical mode.
	EchoErase
	// EchoKill echoes an erase for every byte removed by the line-kill
	// character.
	EchoKill
	// EchoNL echoes a bare newline even when Echo is off.
	EchoNL
	// NoFlush suppresses flushing the line buffer on a signal-raising
	// control character.
	NoFlush
)

// Control-character index (spec §4.6, §3 "control characters").
type CC int

const (
	VINTR CC = iota
	VQUIT
	VSUSP
	VERASE
	VKILL
	VEOF
	VEOL
	// VMIN and VTIME govern non-canonical read timing; vmin is the
	// minimum-read threshold named in §4.6, vtime is consulted by Read's
	// timed wait.
	VMIN
	VTIME
	ccCount
)

// DefaultMaxInputLine bounds the line buffer in canonical mode (spec §4.6
// "the buffer bound is the configured maximum input length").
const DefaultMaxInputLine = 4096

// Settings mirrors POSIX termios closely enough to drive the line
// discipline's state machine (spec §3 TTY entity "settings mirroring
// POSIX termios"): input/local flag words, control characters, and the
// maximum buffered line length.
type Settings struct {
	InputFlags uint32
	LocalFlags uint32
	CC         [ccCount]byte
	MaxLine    int
}

// DefaultSettings returns a conventional canonical-mode, echoing
// configuration: ICRNL, canonical mode, signals, and the common echo
// flags, with the usual ASCII control characters (^C interrupt, ^\ quit,
// ^Z suspend, DEL erase, ^U kill, ^D eof).
func DefaultSettings() Settings {
	s := Settings{
		InputFlags: ICRNL,
		LocalFlags: Canon | Signal | Echo | EchoErase | EchoKill | EchoNL,
		MaxLine:    DefaultMaxInputLine,
	}
	s.CC[VINTR] = 3    // ^C
	s.CC[VQUIT] = 28   // ^\
	s.CC[VSUSP] = 26   // ^Z
	s.CC[VERASE] = 127 // DEL
	s.CC[VKILL] = 21   // ^U
	s.CC[VEOF] = 4     // ^D
	s.CC[VEOL] = 0
	s.CC[VMIN] = 1
	s.CC[VTIME] = 0
	return s
}

// Winsize is the terminal's window-size record (§C.2 of the expanded
// spec: gVisor's devpts master/slave split and every real termios
// implementation carry this even though it has no effect on line
// discipline).
type Winsize struct {
	Rows, Cols     uint16
	XPixel, YPixel uint16
}
