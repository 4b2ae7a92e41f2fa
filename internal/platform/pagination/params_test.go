package pagination

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFromRequestDefaults(t *testing.T) {
	params, err := FromRequest(httptest.NewRequest("GET", "/orders", nil), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.PageSize != DefaultPageSize || params.PageToken != "" {
		t.Fatalf("unexpected defaults %#v", params)
	}
}

func TestFromRequestClampsPageSize(t *testing.T) {
	params, err := FromRequest(httptest.NewRequest("GET", "/orders?pageSize=500", nil), Options{MaxPageSize: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.PageSize != 50 {
		t.Fatalf("expected clamp to 50, got %d", params.PageSize)
	}
}

func TestFromRequestRejectsBadInput(t *testing.T) {
	cases := map[string]error{
		"/orders?pageSize=0":           ErrInvalidPageSize,
		"/orders?pageSize=ten":         ErrInvalidPageSize,
		"/orders?pageToken=***":        ErrInvalidPageToken,
		"/orders?pageToken=bm90anNvbg": ErrInvalidPageToken,
	}
	for target, want := range cases {
		if _, err := FromRequest(httptest.NewRequest("GET", target, nil), Options{}); !errors.Is(err, want) {
			t.Fatalf("%s: expected %v, got %v", target, want, err)
		}
	}
}

func TestTimeKeyRoundTrip(t *testing.T) {
	at := time.Date(2025, 5, 4, 3, 2, 1, 500, time.FixedZone("BST", 6*3600))
	token, err := EncodeTimeKey(TimeKey{At: at, ID: "ord_9"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	params, err := FromRequest(httptest.NewRequest("GET", "/orders?pageToken="+token, nil), Options{})
	if err != nil || params.PageToken != token {
		t.Fatalf("expected token accepted, got %#v %v", params, err)
	}
	key, ok, err := DecodeTimeKey(token)
	if err != nil || !ok {
		t.Fatalf("decode: %v %v", ok, err)
	}
	if !key.At.Equal(at) || key.ID != "ord_9" || key.At.Location() != time.UTC {
		t.Fatalf("unexpected key %#v", key)
	}
}

func TestDecodeTimeKey(t *testing.T) {
	if _, ok, err := DecodeTimeKey(""); ok || err != nil {
		t.Fatalf("empty token should be no key, got %v %v", ok, err)
	}
	bad, _ := EncodeToken(Cursor{StartAfter: []any{"not-a-time", "ord_1"}})
	if _, _, err := DecodeTimeKey(bad); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	short, _ := EncodeToken(Cursor{StartAfter: []any{"2025-01-01T00:00:00Z"}})
	if _, _, err := DecodeTimeKey(short); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected invalid shape, got %v", err)
	}
}

func TestTimeKeyBefore(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	key := TimeKey{At: at, ID: "ord_5"}
	if !key.Before(at.Add(-time.Second), "ord_9") {
		t.Fatalf("older entry belongs on the next page")
	}
	if !key.Before(at, "ord_4") || key.Before(at, "ord_5") || key.Before(at, "ord_6") {
		t.Fatalf("ties must break on id descending")
	}
	if key.Before(at.Add(time.Second), "ord_1") {
		t.Fatalf("newer entry is not on the next page")
	}
}
