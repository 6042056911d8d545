package tool

import (
	"encoding/json"
	"fmt"
)

// Status is the outcome carried by an Envelope.
type Status string

// Envelope statuses.
const (
	StatusSuccess  Status = "success"
	StatusProposed Status = "proposed"
	StatusError    Status = "error"
)

// Envelope is the uniform result of every invocation. Payload keys are
// flattened into the top-level JSON object next to the fixed fields.
type Envelope struct {
	Status        Status
	Message       string
	Action        string
	Params        any
	Record        any
	UpdatedRecord any
	Payload       map[string]any

	// Kind classifies error envelopes. It is not serialized.
	Kind ErrorKind
}

// Success returns a success envelope carrying payload.
func Success(message string, payload map[string]any) Envelope {
	return Envelope{Status: StatusSuccess, Message: message, Payload: payload}
}

// Failure converts err into an error envelope.
func Failure(err error) Envelope {
	return Envelope{Status: StatusError, Message: err.Error(), Kind: Classify(err)}
}

var reservedKeys = map[string]bool{
	"status": true, "message": true, "action": true,
	"params": true, "record": true, "updatedRecord": true,
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Payload)+4)
	for k, v := range e.Payload {
		if !reservedKeys[k] {
			out[k] = v
		}
	}
	out["status"] = e.Status
	if e.Message != "" || e.Status == StatusError {
		out["message"] = e.Message
	}
	if e.Action != "" {
		out["action"] = e.Action
	}
	if e.Params != nil {
		out["params"] = e.Params
	}
	if e.Record != nil {
		out["record"] = e.Record
	}
	if e.UpdatedRecord != nil {
		out["updatedRecord"] = e.UpdatedRecord
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Unknown keys land in Payload.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Envelope{}
	for k, v := range raw {
		switch k {
		case "status":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("tool: envelope status is %T", v)
			}
			e.Status = Status(s)
		case "message":
			e.Message, _ = v.(string)
		case "action":
			e.Action, _ = v.(string)
		case "params":
			e.Params = v
		case "record":
			e.Record = v
		case "updatedRecord":
			e.UpdatedRecord = v
		default:
			if e.Payload == nil {
				e.Payload = make(map[string]any)
			}
			e.Payload[k] = v
		}
	}
	return nil
}
