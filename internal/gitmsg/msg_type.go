package gitmsg

import "fmt"

type MessageType uint16

const (
	// controller -> worker requests
	MsgInit MessageType = iota
	MsgClone
	MsgPull
	MsgFileTree
	MsgReadFile
	MsgSetLocalRoot
	MsgSyncLocal
	MsgWipe

	// worker -> controller responses
	MsgReady
	MsgProgress
	MsgSuccess
	MsgError

	// relay chain
	MsgFetchProxy
	MsgFetchResult
)

func (t MessageType) String() string {
	switch t {
	case MsgInit:
		return "INIT"
	case MsgClone:
		return "CLONE"
	case MsgPull:
		return "PULL"
	case MsgFileTree:
		return "FILE_TREE"
	case MsgReadFile:
		return "READ_FILE"
	case MsgSetLocalRoot:
		return "SET_LOCAL_ROOT"
	case MsgSyncLocal:
		return "SYNC_LOCAL"
	case MsgWipe:
		return "WIPE"
	case MsgReady:
		return "READY"
	case MsgProgress:
		return "PROGRESS"
	case MsgSuccess:
		return "SUCCESS"
	case MsgError:
		return "ERROR"
	case MsgFetchProxy:
		return "FETCH_PROXY"
	case MsgFetchResult:
		return "FETCH_RESULT"
	default:
		return fmt.Sprintf("???(%d)", t)
	}
}

// IsTerminal reports whether the type closes out a pending request id.
func (t MessageType) IsTerminal() bool {
	return t == MsgSuccess || t == MsgError
}

// IsRequest reports whether the type is a controller-issued operation.
func (t MessageType) IsRequest() bool {
	return t <= MsgWipe
}
