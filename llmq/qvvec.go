package llmq

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// QvvecSyncMode selects when a node requests the quorum verification vector
// of a quorum type.
type QvvecSyncMode int8

const (
	// QvvecSyncInvalid marks an unparsable mode.
	QvvecSyncInvalid QvvecSyncMode = -1

	// QvvecSyncAlways syncs the vectors of every quorum of the type.
	QvvecSyncAlways QvvecSyncMode = 0

	// QvvecSyncOnlyIfTypeMember syncs only while the node is a member of
	// a quorum of the type.
	QvvecSyncOnlyIfTypeMember QvvecSyncMode = 1
)

// String returns the mode name.
func (m QvvecSyncMode) String() string {
	switch m {
	case QvvecSyncAlways:
		return "always"
	case QvvecSyncOnlyIfTypeMember:
		return "only_if_type_member"
	default:
		return "invalid"
	}
}

// ErrInvalidQvvecSync is returned for a malformed quorum vector sync entry.
var ErrInvalidQvvecSync = errors.New("invalid llmq-qvvec-sync entry")

// ParseQvvecSyncEntries parses entries of the form "<llmq name>:<mode>". The
// quorum type must run on the network and may appear only once.
func ParseQvvecSyncEntries(entries []string,
	net *NetParams) (map[Type]QvvecSyncMode, error) {

	modes := make(map[Type]QvvecSyncMode, len(entries))
	for _, entry := range entries {
		parts := strings.Split(entry, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: invalid format: %s",
				ErrInvalidQvvecSync, entry)
		}

		t := TypeNone
		for _, p := range net.LLMQs {
			if p.Name == parts[0] {
				t = p.Type
				break
			}
		}
		if t == TypeNone {
			return nil, fmt.Errorf("%w: invalid llmq type: %s",
				ErrInvalidQvvecSync, entry)
		}

		if _, ok := modes[t]; ok {
			return nil, fmt.Errorf("%w: duplicated llmq type: %s",
				ErrInvalidQvvecSync, entry)
		}

		mode := QvvecSyncInvalid
		if v, err := strconv.ParseInt(parts[1], 10, 32); err == nil {
			switch v {
			case int64(QvvecSyncAlways),
				int64(QvvecSyncOnlyIfTypeMember):

				mode = QvvecSyncMode(v)
			}
		}
		if mode == QvvecSyncInvalid {
			return nil, fmt.Errorf("%w: invalid mode: %s",
				ErrInvalidQvvecSync, entry)
		}

		modes[t] = mode
	}

	return modes, nil
}
