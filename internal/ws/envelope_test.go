package ws

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"move with version", `{"v":1,"type":"move","data":{"from":"e2","to":"e4"}}`, false},
		{"move without version", `{"type":"move","data":{"from":"e2","to":"e4"}}`, false},
		{"resign without payload", `{"type":"resign"}`, false},
		{"unknown type", `{"type":"teleport"}`, true},
		{"missing type", `{"data":{}}`, true},
		{"future version", `{"v":99,"type":"move"}`, true},
		{"not json", `move e2e4`, true},
		{"empty", ``, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tc.raw))
			if tc.wantErr {
				if !errors.Is(err, ErrProtocol) {
					t.Fatalf("expected ErrProtocol, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.Type == "" {
				t.Fatal("decoded envelope lost its type")
			}
		})
	}
}

func TestEncodeEnvelopeStampsVersion(t *testing.T) {
	frame, err := EncodeEnvelope(TypeGameOver, GameOverPayload{Reason: "checkmate", Winner: "white"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.V != ProtocolVersion {
		t.Fatalf("expected version %d, got %d", ProtocolVersion, env.V)
	}
	if env.Type != TypeGameOver {
		t.Fatalf("expected type %q, got %q", TypeGameOver, env.Type)
	}

	var payload GameOverPayload
	if err := env.Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Reason != "checkmate" || payload.Winner != "white" {
		t.Fatalf("payload mangled: %+v", payload)
	}
}

func TestEnvelopeDecodeMissingPayload(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"move"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var payload MovePayload
	if err := env.Decode(&payload); !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestMovePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload MovePayload
		valid   bool
		uci     string
	}{
		{"squares", MovePayload{From: "e2", To: "e4"}, true, "e2e4"},
		{"promotion", MovePayload{From: "e7", To: "e8", Promotion: "q"}, true, "e7e8q"},
		{"position only", MovePayload{Position: "8/8/8/8/8/8/8/8 w - - 0 1"}, true, ""},
		{"empty", MovePayload{}, false, ""},
		{"from without to", MovePayload{From: "e2"}, false, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.payload.Valid(); got != tc.valid {
				t.Fatalf("Valid() = %v, want %v", got, tc.valid)
			}
			if got := tc.payload.UCI(); got != tc.uci {
				t.Fatalf("UCI() = %q, want %q", got, tc.uci)
			}
		})
	}
}
