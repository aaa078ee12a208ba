package gitmsg

// FetchProxy carries an escalated network request up the relay chain.
// FetchID is a uuid, so it can never collide with the hex ids used for
// controller/worker requests sharing the same bus.
type FetchProxy struct {
	FetchID string            `json:"fid" msgpack:"fid"`
	URL     string            `json:"url" msgpack:"url"`
	Method  string            `json:"mtd" msgpack:"mtd"`
	Headers map[string]string `json:"hdr,omitempty" msgpack:"hdr,omitempty"`
	Body    []byte            `json:"bdy,omitempty" msgpack:"bdy,omitempty"`
}

// FetchResponse is the normalized response envelope flowing back down the
// chain. Body is an ordered chunk sequence; Bytes() reassembles it into a
// buffer indistinguishable from a direct call.
type FetchResponse struct {
	URL           string            `json:"url" msgpack:"url"`
	StatusCode    int               `json:"sts" msgpack:"sts"`
	StatusMessage string            `json:"stm,omitempty" msgpack:"stm,omitempty"`
	Headers       map[string]string `json:"hdr,omitempty" msgpack:"hdr,omitempty"`
	Body          [][]byte          `json:"bdy,omitempty" msgpack:"bdy,omitempty"`
}

func (r *FetchResponse) Bytes() []byte {
	var size int
	for _, c := range r.Body {
		size += len(c)
	}
	buf := make([]byte, 0, size)
	for _, c := range r.Body {
		buf = append(buf, c...)
	}
	return buf
}

// FetchResult terminates a relay id: exactly one of Response or Error is set.
type FetchResult struct {
	FetchID  string         `json:"fid" msgpack:"fid"`
	Response *FetchResponse `json:"res,omitempty" msgpack:"res,omitempty"`
	Error    string         `json:"err,omitempty" msgpack:"err,omitempty"`
}

func NewFetchProxy(fetchID, url, method string, headers map[string]string, body []byte) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgFetchProxy,
		Data: &FetchProxy{
			FetchID: fetchID,
			URL:     url,
			Method:  method,
			Headers: headers,
			Body:    body,
		},
	}
}

func NewFetchResult(fetchID string, res *FetchResponse) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgFetchResult,
		Data: &FetchResult{FetchID: fetchID, Response: res},
	}
}

func NewFetchError(fetchID string, message string) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgFetchResult,
		Data: &FetchResult{FetchID: fetchID, Error: message},
	}
}
