// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tty

// ctrl reports whether c is the control character at index cc.
func (t *TTY) ctrl(c byte, cc CC) bool {
	return t.settings.CC[cc] != 0 && c == t.settings.CC[cc]
}

// Input processes one incoming byte through the line discipline (spec
// §4.6). It is the single entry point a keyboard driver or pty master
// feeds bytes through.
func (t *TTY) Input(c byte) {
	tok := t.spin.Acquire()
	defer t.spin.Release(tok)

	c, dropped := t.mapInput(c)
	if dropped {
		return
	}

	flags := t.settings.LocalFlags
	if flags&Signal != 0 {
		if sig, ok := t.signalFor(c); ok {
			if flags&NoFlush == 0 {
				t.lineBuf = t.lineBuf[:0]
			}
			if t.signaler != nil {
				t.signaler.SendSignal(t.foreground, sig)
			}
			return
		}
	}

	if flags&Canon == 0 {
		t.readBuf = append(t.readBuf, c)
		if len(t.readBuf) >= t.minRead() {
			t.dataAvail.Up()
		}
		t.genericEcho(c)
		return
	}

	switch {
	case t.ctrl(c, VERASE):
		if n := len(t.lineBuf); n > 0 {
			t.lineBuf = t.lineBuf[:n-1]
			if flags&EchoErase != 0 {
				t.echo([]byte{'\b', ' ', '\b'})
			}
		}
		return

	case t.ctrl(c, VKILL):
		removed := len(t.lineBuf)
		t.lineBuf = t.lineBuf[:0]
		if flags&EchoKill != 0 {
			for i := 0; i < removed; i++ {
				t.echo([]byte{'\b', ' ', '\b'})
			}
		}
		return

	case c == '\n' || t.ctrl(c, VEOL) || t.ctrl(c, VEOF):
		line := t.lineBuf
		if c == '\n' || t.ctrl(c, VEOL) {
			line = append(line, c)
		}
		t.readBuf = append(t.readBuf, line...)
		t.lineBuf = nil
		t.dataAvail.Up()
		t.genericEcho(c)
		return

	default:
		if len(t.lineBuf) < t.settings.MaxLine {
			t.lineBuf = append(t.lineBuf, c)
		}
		t.genericEcho(c)
	}
}

// mapInput applies the input-flag byte mappings (spec §4.6 "carriage-
// return -> newline, newline -> carriage-return, ignore-carriage-return,
// strip-high-bit"), in the order a real termios driver does: strip, then
// either drop or translate a carriage return, then translate a bare
// newline. dropped is true only for IgnCR, which removes the byte from the
// stream entirely.
func (t *TTY) mapInput(c byte) (mapped byte, dropped bool) {
	flags := t.settings.InputFlags
	if flags&IStrip != 0 {
		c &= 0x7f
	}
	if c == '\r' {
		if flags&IgnCR != 0 {
			return 0, true
		}
		if flags&ICRNL != 0 {
			c = '\n'
		}
		return c, false
	}
	if c == '\n' && flags&INLCR != 0 {
		c = '\r'
	}
	return c, false
}

func (t *TTY) signalFor(c byte) (Signal, bool) {
	switch {
	case t.ctrl(c, VINTR):
		return SigInterrupt, true
	case t.ctrl(c, VQUIT):
		return SigQuit, true
	case t.ctrl(c, VSUSP):
		return SigSuspend, true
	}
	return 0, false
}

// genericEcho implements the discipline's last rule: echo c if the echo
// flags call for it, with newline always echoed when EchoNL is set even
// with general echo off.
func (t *TTY) genericEcho(c byte) {
	flags := t.settings.LocalFlags
	if c == '\n' && flags&EchoNL != 0 {
		t.echo([]byte{'\n'})
		return
	}
	if flags&Echo != 0 {
		t.echo([]byte{c})
	}
}

func (t *TTY) minRead() int {
	if n := int(t.settings.CC[VMIN]); n > 0 {
		return n
	}
	return 1
}
