package gitmsg

// Clone asks the worker to clone a repository into the content store.
type Clone struct {
	URL string `json:"url"`
	Ref string `json:"ref,omitempty"`
}

// Pull asks the worker to fast-forward the store to the remote ref.
type Pull struct {
	URL string `json:"url"`
	Ref string `json:"ref,omitempty"`
}

type ReadFile struct {
	Path string `json:"pth"`
}

type SetLocalRoot struct {
	RootDir string `json:"dir"`
}

// SyncLocal mirrors the store subtree at Path onto the local root.
// An empty Path means the whole tree, which also enables mirror cleanup.
type SyncLocal struct {
	Path string `json:"pth,omitempty"`
}

// Progress is a non-terminal status line for a pending request.
type Progress struct {
	Current int    `json:"cur"`
	Total   int    `json:"tot"`
	Path    string `json:"pth,omitempty"`
	Skipped bool   `json:"skp,omitempty"`
	Updated bool   `json:"upd,omitempty"`
	Note    string `json:"msg,omitempty"`
}

// Success closes out a request. Payload shape depends on the request kind;
// over the wire it stays raw and the caller decodes it.
type Success struct {
	Payload any `json:"pld,omitempty"`
}

// Error closes out a request with a failure.
type Error struct {
	Message string `json:"msg"`
}

func NewRequest(t MessageType, data any) *Message {
	return &Message{Id: generateID(), Type: t, Data: data}
}

func NewReady() *Message {
	return &Message{Id: generateID(), Type: MsgReady}
}

func NewProgress(id string, p *Progress) *Message {
	return &Message{Id: id, Type: MsgProgress, Data: p}
}

func NewSuccess(id string, payload any) *Message {
	return &Message{Id: id, Type: MsgSuccess, Data: &Success{Payload: payload}}
}

func NewError(id string, message string) *Message {
	return &Message{Id: id, Type: MsgError, Data: &Error{Message: message}}
}
