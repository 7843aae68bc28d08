package lnutils

import (
	"log/slog"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btclog/v2"
	"github.com/davecgh/go-spew/spew"
)

// LogClosure is used to provide a closure over expensive logging operations so
// don't have to be performed when the logging level doesn't warrant it.
type LogClosure func() string

// String invokes the underlying function and returns the result.
func (c LogClosure) String() string {
	return c()
}

// NewLogClosure returns a new closure over a function that returns a string
// which itself provides a Stringer interface so that it can be used with the
// logging system.
func NewLogClosure(c func() string) LogClosure {
	return LogClosure(c)
}

// SpewLogClosure takes an interface and returns the string of it created from
// `spew.Sdump` in a LogClosure.
func SpewLogClosure(a any) LogClosure {
	return func() string {
		return spew.Sdump(a)
	}
}

// NewSeparatorClosure returns a new closure that logs a separator line.
func NewSeparatorClosure() LogClosure {
	return func() string {
		return strings.Repeat("=", 80)
	}
}

// LogHash returns a slog attribute for logging a 256-bit hash in its usual
// byte-reversed hex form, abbreviated to the first 16 characters.
func LogHash(key string, hash *chainhash.Hash) slog.Attr {
	if hash == nil {
		return btclog.Fmt(key, "<nil>")
	}

	return btclog.Fmt(key, "%.16s", hash.String())
}

// ShortHashes formats a list of hashes in abbreviated form, e.g. for log
// lines listing quorum members.
func ShortHashes(hashes []chainhash.Hash) string {
	var b strings.Builder
	b.WriteByte('[')
	for i := range hashes {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(hashes[i].String()[:16])
	}
	b.WriteByte(']')

	return b.String()
}
