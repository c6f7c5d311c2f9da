package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/clweng/ledgerbot/internal/engine"
	"github.com/clweng/ledgerbot/internal/ledger"
	"github.com/clweng/ledgerbot/internal/storage"
)

const testSecret = "channel-secret"

type memSnaps struct {
	mu   sync.Mutex
	last []byte
}

func (m *memSnaps) Save(ctx context.Context, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = snapshot
	return nil
}

func (m *memSnaps) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil, storage.ErrNoSnapshot
	}
	return m.last, nil
}

func (m *memSnaps) Close() error { return nil }

type recordedReply struct {
	token string
	text  string
}

type fakeSender struct {
	mu      sync.Mutex
	replies []recordedReply
}

func (f *fakeSender) Reply(ctx context.Context, replyToken, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, recordedReply{token: replyToken, text: text})
	return nil
}

func newTestHandler() (*Handler, *fakeSender) {
	eng := engine.New(ledger.New(), &memSnaps{})
	sender := &fakeSender{}
	return NewHandler(eng, testSecret, sender), sender
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func textEventBody(t *testing.T, groupID, userID, replyToken, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"events": []map[string]any{{
			"type":       "message",
			"replyToken": replyToken,
			"source":     map[string]string{"type": "group", "groupId": groupID, "userId": userID},
			"message":    map[string]string{"type": "text", "text": text},
		}},
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return body
}

func TestCallbackRejectsBadSignature(t *testing.T) {
	h, sender := newTestHandler()
	body := textEventBody(t, "g1", "alice", "tok-1", "query-total")

	req := httptest.NewRequest("POST", "/callback", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", "not-the-signature")
	w := httptest.NewRecorder()
	h.Callback(w, req)

	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(sender.replies) != 0 {
		t.Error("no reply may be sent for an unverified request")
	}
}

func TestCallbackExecutesCommandAndReplies(t *testing.T) {
	h, sender := newTestHandler()
	body := textEventBody(t, "g1", "alice", "tok-1", "record-amount 2024.01.15 $100")

	req := httptest.NewRequest("POST", "/callback", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", sign(body))
	w := httptest.NewRecorder()
	h.Callback(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(sender.replies) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sender.replies))
	}
	if sender.replies[0].token != "tok-1" {
		t.Errorf("reply token = %q", sender.replies[0].token)
	}
	if !strings.Contains(sender.replies[0].text, "Recorded unpaid 2024-01-15 $100") {
		t.Errorf("reply text = %q", sender.replies[0].text)
	}
}

func TestCallbackIgnoresNonTextEvents(t *testing.T) {
	h, sender := newTestHandler()
	body, _ := json.Marshal(map[string]any{
		"events": []map[string]any{
			{"type": "join", "replyToken": "tok-1"},
			{"type": "message", "replyToken": "tok-2",
				"source":  map[string]string{"groupId": "g1", "userId": "alice"},
				"message": map[string]string{"type": "sticker"}},
		},
	})

	req := httptest.NewRequest("POST", "/callback", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", sign(body))
	w := httptest.NewRecorder()
	h.Callback(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(sender.replies) != 0 {
		t.Errorf("non-text events must not produce replies, got %d", len(sender.replies))
	}
}

func TestCallbackStaysSilentOnUnrecognizedText(t *testing.T) {
	h, sender := newTestHandler()
	body := textEventBody(t, "g1", "alice", "tok-1", "hello everyone")

	req := httptest.NewRequest("POST", "/callback", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", sign(body))
	w := httptest.NewRecorder()
	h.Callback(w, req)

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(sender.replies) != 0 {
		t.Errorf("unrecognized text must not be replied to, got %d replies", len(sender.replies))
	}
}
