package protocol

import (
	"strconv"
	"strings"
)

// Telnet command bytes (RFC 854).
const (
	telnetSE   = 240
	telnetSB   = 250
	telnetWILL = 251
	telnetWONT = 252
	telnetDO   = 253
	telnetDONT = 254
	telnetIAC  = 255
)

// telnetOptionNames names the options servers commonly negotiate.
var telnetOptionNames = map[byte]string{
	0:  "binary",
	1:  "echo",
	3:  "suppress-go-ahead",
	5:  "status",
	6:  "timing-mark",
	24: "terminal-type",
	31: "window-size",
	32: "terminal-speed",
	33: "remote-flow-control",
	34: "linemode",
	35: "x-display-location",
	36: "environ",
	39: "new-environ",
}

// telnetPrompts are the endings that mean the server is waiting for input.
var telnetPrompts = []string{":", ">", "#", "$", "%"}

// telnetStream is a received telnet byte stream split into text and
// option negotiation.
type telnetStream struct {
	text []byte
	do   []byte
	will []byte
	// complete is false when the data ends inside a command sequence.
	complete bool
}

// splitTelnet separates the negotiation commands from the text. IAC IAC is
// an escaped 0xff data byte; subnegotiations are skipped up to IAC SE.
func splitTelnet(data []byte) telnetStream {
	st := telnetStream{complete: true}
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b != telnetIAC {
			st.text = append(st.text, b)
			continue
		}
		if i+1 >= len(data) {
			st.complete = false
			break
		}
		cmd := data[i+1]
		switch cmd {
		case telnetIAC:
			st.text = append(st.text, telnetIAC)
			i++
		case telnetDO, telnetDONT, telnetWILL, telnetWONT:
			if i+2 >= len(data) {
				st.complete = false
				return st
			}
			switch cmd {
			case telnetDO:
				st.do = append(st.do, data[i+2])
			case telnetWILL:
				st.will = append(st.will, data[i+2])
			}
			i += 2
		case telnetSB:
			end := -1
			for j := i + 2; j+1 < len(data); j++ {
				if data[j] == telnetIAC && data[j+1] == telnetSE {
					end = j + 1
					break
				}
			}
			if end < 0 {
				st.complete = false
				return st
			}
			i = end
		default:
			i++
		}
	}
	return st
}

// refusals answers every DO with WONT and every WILL with DONT.
func (st telnetStream) refusals() []byte {
	out := make([]byte, 0, 3*(len(st.do)+len(st.will)))
	for _, opt := range st.do {
		out = append(out, telnetIAC, telnetWONT, opt)
	}
	for _, opt := range st.will {
		out = append(out, telnetIAC, telnetDONT, opt)
	}
	return out
}

// telnetBannerComplete ends the first read once the server has either sent
// only negotiation (it is waiting for our answers) or a line or prompt.
func telnetBannerComplete(data []byte) bool {
	st := splitTelnet(data)
	if !st.complete {
		return false
	}
	text := strings.TrimRight(string(st.text), " \t\x00")
	if text == "" {
		return len(st.do)+len(st.will) > 0
	}
	return strings.HasSuffix(text, "\n") || hasPrompt(text)
}

// telnetPromptComplete ends the second read at a prompt, or at the end of a
// line when nothing prompt-like has arrived.
func telnetPromptComplete(data []byte) bool {
	st := splitTelnet(data)
	if !st.complete {
		return false
	}
	text := strings.TrimRight(string(st.text), " \t\x00")
	return hasPrompt(text) || (text != "" && strings.HasSuffix(text, "\n"))
}

// hasPrompt reports whether text ends like an input prompt.
func hasPrompt(text string) bool {
	for _, p := range telnetPrompts {
		if strings.HasSuffix(text, p) {
			return true
		}
	}
	return false
}

// driveTelnet reads the banner, refuses every option the server proposed,
// sends an empty line and reads what comes back. Only one negotiation round
// is answered.
func driveTelnet(s *Session) {
	banner, ok := s.expect("banner", nil, telnetBannerComplete)
	if !ok {
		if len(banner) > 0 {
			parseTelnet(s, banner)
		}
		return
	}

	reply := append(splitTelnet(banner).refusals(), '\r', '\n')
	if !s.send("negotiation", reply) {
		parseTelnet(s, banner)
		return
	}

	prompt := s.collect("prompt", telnetPromptComplete)
	parseTelnet(s, append(banner, prompt...))
}

// parseTelnet records the negotiated options and the last prompt-like line.
func parseTelnet(s *Session, data []byte) {
	st := splitTelnet(data)
	s.set("options_do", telnetOptionList(st.do))
	s.set("options_will", telnetOptionList(st.will))

	text := strings.ReplaceAll(string(st.text), "\r", "")
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			s.set("prompt", printableOnly(line))
			break
		}
	}
}

// telnetOptionList renders option codes as a comma-separated list of names.
func telnetOptionList(opts []byte) string {
	names := make([]string, 0, len(opts))
	for _, o := range opts {
		name, ok := telnetOptionNames[o]
		if !ok {
			name = strconv.Itoa(int(o))
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// printableOnly drops non-printable bytes from s.
func printableOnly(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 0x20 && c <= 0x7e {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
