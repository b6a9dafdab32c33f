package server

// hpErrno is the closed set of parse error codes this parser can latch,
// named after the classic http_parser C library's HPE_* errno table that
// the original implementation wrapped.
type hpErrno int

const (
	hpOK hpErrno = iota
	hpInvalidMethod
	hpInvalidVersion
	hpInvalidHeaderToken
	hpInvalidEOFState
	hpCRExpected
	hpLFExpected
)

var hpErrnoNames = map[hpErrno]string{
	hpOK:                 "HPE_OK",
	hpInvalidMethod:      "HPE_INVALID_METHOD",
	hpInvalidVersion:     "HPE_INVALID_VERSION",
	hpInvalidHeaderToken: "HPE_INVALID_HEADER_TOKEN",
	hpInvalidEOFState:    "HPE_INVALID_EOF_STATE",
	hpCRExpected:         "HPE_CR_EXPECTED",
	hpLFExpected:         "HPE_LF_EXPECTED",
}

var hpErrnoDescriptions = map[hpErrno]string{
	hpOK:                 "success",
	hpInvalidMethod:      "invalid HTTP method",
	hpInvalidVersion:     "invalid HTTP version",
	hpInvalidHeaderToken: "invalid character in header",
	hpInvalidEOFState:    "stream ended at an unexpected point",
	hpCRExpected:         "expected CR after CRLF line",
	hpLFExpected:         "expected LF",
}

// hpState enumerates the incremental request-parsing state machine. Each
// Parse call advances through these states byte by byte and may suspend
// at any point when the fed chunk runs out, to be resumed by the next
// Parse call.
type hpState int

const (
	stMethod hpState = iota
	stTarget
	stVersionH
	stVersionHT
	stVersionHTT
	stVersionHTTP
	stVersionSlash
	stVersionMajor
	stVersionDot
	stVersionMinor
	stRequestLineCR
	stHeaderFieldStart
	stHeaderField
	stHeaderValueStart
	stHeaderValue
	stHeaderValueCR
	stHeadersAlmostDone
	stDone
)

// Parser is an incremental, chunk-tolerant HTTP/1.x request parser. It is
// a value type: Parse returns the next state rather than mutating
// receiver fields shared across goroutines, so that feeding the same
// logical byte stream in differently-sized chunks always converges on
// the same final state (chunk-boundary invariance).
type Parser struct {
	state hpState
	errno hpErrno

	methodTok string
	targetBuf string
	fieldBuf  string
	valueBuf  string

	method    Method
	hasMethod bool
	target    string
	verMajor  int
	verMinor  int
	hasVer    bool
	headers   *HeaderMap

	upgrade bool
	offset  int
}

// NewParser returns a fresh Parser ready to consume a request from byte
// zero.
func NewParser() Parser {
	return Parser{state: stMethod, headers: NewHeaderMap()}
}

// Success reports whether no parse error has been latched.
func (p Parser) Success() bool { return p.errno == hpOK }

// ErrorName returns the HPE_* style name of the latched error, or
// "HPE_OK" if none.
func (p Parser) ErrorName() string { return hpErrnoNames[p.errno] }

// ErrorDescription returns a human-readable description of the latched
// error.
func (p Parser) ErrorDescription() string { return hpErrnoDescriptions[p.errno] }

// Upgrade reports whether the headers-complete event fired with an
// Upgrade request present.
func (p Parser) Upgrade() bool { return p.upgrade }

// Offset returns the index, within the most recently fed chunk, of the
// first byte following the HTTP request once Upgrade() is true. Its
// value is meaningless before Upgrade() becomes true.
func (p Parser) Offset() int { return p.offset }

// Method returns the parsed method, if headers-complete (or at least the
// request line) has been reached.
func (p Parser) Method() (Method, bool) { return p.method, p.hasMethod }

// Target returns the parsed request target.
func (p Parser) Target() (string, bool) {
	if p.target == "" {
		return "", false
	}
	return p.target, true
}

// Version returns the parsed HTTP version as (major, minor).
func (p Parser) Version() (int, int, bool) { return p.verMajor, p.verMinor, p.hasVer }

// Header returns the value of a completed header by name.
func (p Parser) Header(name string) (string, bool) {
	if p.headers == nil {
		return "", false
	}
	return p.headers.Get(name)
}

// Headers exposes the underlying HeaderMap view for handshake validation.
func (p Parser) Headers() *HeaderMap { return p.headers }

func isTokenChar(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '-', '_', '.', '!', '#', '$', '%', '&', '\'', '*', '+', '^', '`', '|', '~':
		return true
	}
	return false
}

// Parse consumes data from the current state and returns the resulting
// Parser. It is chunk-boundary invariant: feeding bs in two pieces
// produces the same final state as feeding it in one piece. Once an
// error has been latched or Upgrade() becomes true, further calls are
// no-ops.
func (p Parser) Parse(data []byte) Parser {
	if !p.Success() || p.upgrade || p.state == stDone {
		return p
	}

	for i := 0; i < len(data); i++ {
		b := data[i]

		switch p.state {
		case stMethod:
			if b == ' ' {
				tok := p.methodTok
				m, ok := lookupMethod(tok)
				if !ok {
					p.errno = hpInvalidMethod
					return p
				}
				p.method = m
				p.hasMethod = true
				p.state = stTarget
				continue
			}
			p.methodTok += string(b)

		case stTarget:
			if b == ' ' {
				p.target = p.targetBuf
				p.state = stVersionH
				continue
			}
			p.targetBuf += string(b)

		case stVersionH:
			if b != 'H' {
				p.errno = hpInvalidVersion
				return p
			}
			p.state = stVersionHT
		case stVersionHT:
			if b != 'T' {
				p.errno = hpInvalidVersion
				return p
			}
			p.state = stVersionHTT
		case stVersionHTT:
			if b != 'T' {
				p.errno = hpInvalidVersion
				return p
			}
			p.state = stVersionHTTP
		case stVersionHTTP:
			if b != 'P' {
				p.errno = hpInvalidVersion
				return p
			}
			p.state = stVersionSlash
		case stVersionSlash:
			if b != '/' {
				p.errno = hpInvalidVersion
				return p
			}
			p.state = stVersionMajor
		case stVersionMajor:
			if b < '0' || b > '9' {
				p.errno = hpInvalidVersion
				return p
			}
			p.verMajor = int(b - '0')
			p.state = stVersionDot
		case stVersionDot:
			if b != '.' {
				p.errno = hpInvalidVersion
				return p
			}
			p.state = stVersionMinor
		case stVersionMinor:
			if b < '0' || b > '9' {
				p.errno = hpInvalidVersion
				return p
			}
			p.verMinor = int(b - '0')
			p.hasVer = true
			p.state = stRequestLineCR

		case stRequestLineCR:
			switch b {
			case '\r':
				// wait for LF
			case '\n':
				p.state = stHeaderFieldStart
			default:
				p.errno = hpLFExpected
				return p
			}

		case stHeaderFieldStart:
			switch b {
			case '\r':
				// blank line pending, wait for LF
				p.state = stHeadersAlmostDone
			case '\n':
				p = p.finishHeaders(data, i+1)
				return p
			default:
				if !isTokenChar(b) {
					p.errno = hpInvalidHeaderToken
					return p
				}
				p.fieldBuf = string(b)
				p.state = stHeaderField
			}

		case stHeaderField:
			if b == ':' {
				p.state = stHeaderValueStart
				continue
			}
			if !isTokenChar(b) {
				p.errno = hpInvalidHeaderToken
				return p
			}
			p.fieldBuf += string(b)

		case stHeaderValueStart:
			if b == ' ' || b == '\t' {
				continue
			}
			p.valueBuf = ""
			if b == '\r' {
				p.state = stHeaderValueCR
				continue
			}
			if b == '\n' {
				p = p.commitHeader()
				p.state = stHeaderFieldStart
				continue
			}
			p.valueBuf += string(b)
			p.state = stHeaderValue

		case stHeaderValue:
			switch b {
			case '\r':
				p.state = stHeaderValueCR
			case '\n':
				p = p.commitHeader()
				p.state = stHeaderFieldStart
			default:
				p.valueBuf += string(b)
			}

		case stHeaderValueCR:
			if b != '\n' {
				p.errno = hpLFExpected
				return p
			}
			p = p.commitHeader()
			p.state = stHeaderFieldStart

		case stHeadersAlmostDone:
			if b != '\n' {
				p.errno = hpLFExpected
				return p
			}
			p = p.finishHeaders(data, i+1)
			return p
		}
	}

	return p
}

// Finish flushes end-of-stream; with no more input there is nothing
// further to consume, but a parser suspended mid-field at end of input
// is reported as an error since no request was ever completed.
func (p Parser) Finish() Parser {
	if p.Success() && p.state != stDone && p.state != stHeaderFieldStart && !p.upgrade {
		p.errno = hpInvalidEOFState
	}
	return p
}

func (p Parser) commitHeader() Parser {
	name := p.fieldBuf
	value := p.valueBuf
	if p.headers == nil {
		p.headers = NewHeaderMap()
	}
	p.headers.Set(name, value)
	p.fieldBuf = ""
	p.valueBuf = ""
	return p
}

// finishHeaders is invoked once the blank line terminating the header
// block is observed. offsetInChunk is the index, within the chunk
// currently being fed to Parse, of the first byte after that blank
// line.
func (p Parser) finishHeaders(data []byte, offsetInChunk int) Parser {
	p.state = stDone

	if p.headers != nil && p.headers.HasKeyword("connection", "upgrade") && p.headers.Has("upgrade") {
		p.upgrade = true
		p.offset = offsetInChunk
	}

	return p
}
