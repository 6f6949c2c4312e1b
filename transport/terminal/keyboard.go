package terminal

import (
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const (
	keyCtrlC  = 0x03
	keyEscape = 0x1b

	keyBuffer = 64
)

// Keyboard is a session.InputSource reading key presses from a terminal.
// Arrow keys are translated to N, S, E and W; Ctrl-C to Q.
type Keyboard struct {
	keys chan rune

	mu      sync.Mutex
	restore func()
}

// OpenKeyboard puts f into raw mode when it is a terminal and starts reading
// from it. Close restores the terminal.
func OpenKeyboard(f *os.File) (*Keyboard, error) {
	k := NewKeyboard(f)
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return k, nil
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	k.restore = func() {
		if err := term.Restore(fd, state); err != nil {
			log.WithError(err).Warn("failed to restore terminal")
		}
	}
	return k, nil
}

// NewKeyboard reads keys from r without touching terminal modes
func NewKeyboard(r io.Reader) *Keyboard {
	k := &Keyboard{keys: make(chan rune, keyBuffer)}
	go k.read(r)
	return k
}

// Poll returns the oldest unread key
func (k *Keyboard) Poll() (rune, bool) {
	select {
	case r := <-k.keys:
		return r, true
	default:
		return 0, false
	}
}

// Close restores the terminal mode. The reader goroutine ends with its input.
func (k *Keyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.restore != nil {
		k.restore()
		k.restore = nil
	}
	return nil
}

func (k *Keyboard) read(r io.Reader) {
	buf := make([]byte, 64)
	var pending []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			var keys []rune
			keys, pending = decodeKeys(append(pending, buf[:n]...))
			for _, key := range keys {
				select {
				case k.keys <- key:
				default:
					log.Debug("keyboard buffer full, dropping key")
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				log.WithError(err).Debug("keyboard read stopped")
			}
			return
		}
	}
}

// decodeKeys turns raw terminal bytes into keys. An escape sequence cut off
// at the end of b is returned as rest.
func decodeKeys(b []byte) (keys []rune, rest []byte) {
	for i := 0; i < len(b); i++ {
		switch c := b[i]; c {
		case keyCtrlC:
			keys = append(keys, 'Q')
		case keyEscape:
			if i+2 >= len(b) {
				return keys, append([]byte(nil), b[i:]...)
			}
			if b[i+1] != '[' {
				continue
			}
			switch b[i+2] {
			case 'A':
				keys = append(keys, 'N')
			case 'B':
				keys = append(keys, 'S')
			case 'C':
				keys = append(keys, 'E')
			case 'D':
				keys = append(keys, 'W')
			}
			i += 2
		default:
			if c >= 0x20 && c < 0x7f {
				keys = append(keys, rune(c))
			}
		}
	}
	return keys, nil
}
