package server

// Method is the closed set of HTTP/WebDAV request methods this parser
// recognises, mirroring the token table of the classic http_parser C
// library that the original implementation wrapped.
type Method int

const (
	MethodDelete Method = iota
	MethodGet
	MethodHead
	MethodPost
	MethodPut
	MethodConnect
	MethodOptions
	MethodTrace
	MethodCopy
	MethodLock
	MethodMkcol
	MethodMove
	MethodPropfind
	MethodProppatch
	MethodSearch
	MethodUnlock
	MethodReport
	MethodMkactivity
	MethodCheckout
	MethodMerge
	MethodMsearch
	MethodNotify
	MethodSubscribe
	MethodUnsubscribe
	MethodPatch
	MethodPurge
)

var methodNames = map[string]Method{
	"DELETE":      MethodDelete,
	"GET":         MethodGet,
	"HEAD":        MethodHead,
	"POST":        MethodPost,
	"PUT":         MethodPut,
	"CONNECT":     MethodConnect,
	"OPTIONS":     MethodOptions,
	"TRACE":       MethodTrace,
	"COPY":        MethodCopy,
	"LOCK":        MethodLock,
	"MKCOL":       MethodMkcol,
	"MOVE":        MethodMove,
	"PROPFIND":    MethodPropfind,
	"PROPPATCH":   MethodProppatch,
	"SEARCH":      MethodSearch,
	"UNLOCK":      MethodUnlock,
	"REPORT":      MethodReport,
	"MKACTIVITY":  MethodMkactivity,
	"CHECKOUT":    MethodCheckout,
	"MERGE":       MethodMerge,
	"M-SEARCH":    MethodMsearch,
	"NOTIFY":      MethodNotify,
	"SUBSCRIBE":   MethodSubscribe,
	"UNSUBSCRIBE": MethodUnsubscribe,
	"PATCH":       MethodPatch,
	"PURGE":       MethodPurge,
}

var methodTokens = func() map[Method]string {
	out := make(map[Method]string, len(methodNames))
	for name, m := range methodNames {
		out[m] = name
	}
	return out
}()

func (m Method) String() string {
	if s, ok := methodTokens[m]; ok {
		return s
	}
	return "UNKNOWN"
}

func lookupMethod(token string) (Method, bool) {
	m, ok := methodNames[token]
	return m, ok
}
