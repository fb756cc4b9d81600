package store

import (
	"errors"
	"testing"
	"time"

	"github.com/jpalmerr/thermoboard/internal/device"
	"github.com/jpalmerr/thermoboard/internal/poller"
)

func TestFromSnapshot(t *testing.T) {
	updated := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	latest := device.Reading{Temperature: 22, Timestamp: 3000}

	got := FromSnapshot(poller.Snapshot{
		History: []device.Reading{
			{Temperature: 20, Timestamp: 1000},
			{Temperature: 21, Timestamp: 2000},
			latest,
		},
		Latest:    &latest,
		UpdatedAt: updated,
	})

	if len(got.History) != 3 {
		t.Fatalf("len(History) = %d, want 3", len(got.History))
	}
	for i, want := range []float64{20, 21, 22} {
		if got.History[i].Temperature != want {
			t.Errorf("History[%d].Temperature = %v, want %v", i, got.History[i].Temperature, want)
		}
	}
	if got.Latest == nil || got.Latest.Timestamp != 3000 {
		t.Errorf("Latest = %v, want timestamp 3000", got.Latest)
	}
	if got.LastError != nil {
		t.Errorf("LastError = %v, want nil", got.LastError)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, updated)
	}
}

func TestFromSnapshot_Loading(t *testing.T) {
	got := FromSnapshot(poller.Snapshot{IsLoading: true})

	if !got.IsLoading {
		t.Error("IsLoading = false, want true")
	}
	if got.History == nil {
		t.Error("History = nil, want empty slice so JSON encodes []")
	}
	if got.Latest != nil {
		t.Errorf("Latest = %v, want nil", got.Latest)
	}
}

func TestErrorInfoFrom(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantNil    bool
		wantKind   string
		wantStatus int
	}{
		{
			name:    "nil error",
			err:     nil,
			wantNil: true,
		},
		{
			name:       "http status",
			err:        &device.FetchError{Kind: device.KindHTTPStatus, StatusCode: 500},
			wantKind:   "http_status",
			wantStatus: 500,
		},
		{
			name:     "network",
			err:      &device.FetchError{Kind: device.KindNetwork, Err: errors.New("connection refused")},
			wantKind: "network",
		},
		{
			name:     "malformed body",
			err:      &device.FetchError{Kind: device.KindMalformedBody},
			wantKind: "malformed_body",
		},
		{
			name:       "wrapped fetch error",
			err:        errors.Join(errors.New("context"), &device.FetchError{Kind: device.KindHTTPStatus, StatusCode: 404}),
			wantKind:   "http_status",
			wantStatus: 404,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			wantKind: "network",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorInfoFrom(tt.err)
			if tt.wantNil {
				if got != nil {
					t.Errorf("ErrorInfoFrom() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("ErrorInfoFrom() = nil")
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
			if got.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.wantStatus)
			}
			if got.Message != tt.err.Error() {
				t.Errorf("Message = %q, want %q", got.Message, tt.err.Error())
			}
		})
	}
}
