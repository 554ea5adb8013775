package command

import (
	"encoding/json"
	"fmt"
)

// Response is the outcome of one command: a success or an error message.
type Response struct {
	Message string
	Failed  bool
}

// Success builds a successful response.
func Success(message string) Response {
	return Response{Message: message}
}

// Error builds a failed response.
func Error(message string) Response {
	return Response{Message: message, Failed: true}
}

// OK reports whether the command succeeded.
func (r Response) OK() bool {
	return !r.Failed
}

func (r Response) String() string {
	if r.Failed {
		return "Error(" + r.Message + ")"
	}
	return "Success(" + r.Message + ")"
}

// MarshalJSON encodes {"Success": msg} or {"Error": msg}.
func (r Response) MarshalJSON() ([]byte, error) {
	key := "Success"
	if r.Failed {
		key = "Error"
	}
	return json.Marshal(map[string]string{key: r.Message})
}

// UnmarshalJSON decodes {"Success": msg} or {"Error": msg}.
func (r *Response) UnmarshalJSON(data []byte) error {
	var tagged map[string]string
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("decode response: want exactly one of Success or Error")
	}
	if msg, ok := tagged["Success"]; ok {
		*r = Success(msg)
		return nil
	}
	if msg, ok := tagged["Error"]; ok {
		*r = Error(msg)
		return nil
	}
	return fmt.Errorf("decode response: want exactly one of Success or Error")
}
