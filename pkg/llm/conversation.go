package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Conversation is an ordered sequence of turns, oldest first.
type Conversation []Turn

// Normalize returns a copy of c that is never nil. Order and content are
// preserved; nothing is dropped, merged or truncated.
func Normalize(c Conversation) Conversation {
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// With returns a new conversation made of c followed by t. The receiver's
// backing array is never written to.
func (c Conversation) With(t Turn) Conversation {
	out := make(Conversation, 0, len(c)+1)
	out = append(out, c...)
	return append(out, t)
}

// Validate checks that every turn carries a known role.
func (c Conversation) Validate() error {
	for i, t := range c {
		if !t.Role.Valid() {
			return fmt.Errorf("history[%d]: unknown role %q", i, t.Role)
		}
	}
	return nil
}

// UnmarshalJSON decodes a history in any of the shapes chat widgets send:
//
//   - null or absent: empty conversation
//   - [{"role": "user", "content": "hi", "metadata": {...}}, ...]: extra keys dropped
//   - [["hi", "hello!"], ["how are you", null]]: each pair becomes a user turn
//     followed by an assistant turn; a null reply yields only the user turn
//
// Both element shapes may be mixed in one array.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Conversation{}
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return fmt.Errorf("history must be an array: %w", err)
	}

	out := make(Conversation, 0, len(elems))
	for i, raw := range elems {
		turns, err := decodeEntry(raw)
		if err != nil {
			return fmt.Errorf("history[%d]: %w", i, err)
		}
		out = append(out, turns...)
	}

	*c = out
	return nil
}

// MarshalJSON always encodes an array, never null.
func (c Conversation) MarshalJSON() ([]byte, error) {
	return json.Marshal([]Turn(Normalize(c)))
}

// wrappedTurn is the object form of a history entry.
type wrappedTurn struct {
	Role    *Role           `json:"role"`
	Content json.RawMessage `json:"content"`
}

func decodeEntry(raw json.RawMessage) ([]Turn, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty entry")
	}

	switch raw[0] {
	case '{':
		var w wrappedTurn
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		if w.Role == nil {
			return nil, fmt.Errorf("missing role")
		}
		content, err := decodeContent(w.Content)
		if err != nil {
			return nil, err
		}
		return []Turn{{Role: *w.Role, Content: content}}, nil

	case '[':
		var pair []*string
		if err := json.Unmarshal(raw, &pair); err != nil {
			return nil, fmt.Errorf("pair entries must hold text: %w", err)
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("pair entries need exactly 2 items, got %d", len(pair))
		}
		if pair[0] == nil {
			return nil, fmt.Errorf("pair entry has no user message")
		}
		turns := []Turn{UserTurn(*pair[0])}
		if pair[1] != nil {
			turns = append(turns, AssistantTurn(*pair[1]))
		}
		return turns, nil
	}

	return nil, fmt.Errorf("entry must be an object or a [user, assistant] pair")
}

func decodeContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("content must be text")
	}
	return s, nil
}
